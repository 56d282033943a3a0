// Package grading implements the grade computation engine: arithmetic
// formula evaluation, the CvTE points-to-grade conversion with its three
// calculation modes, weighted composite grades, per-level norm resolution
// and threshold search.
//
// Everything in this package is pure computation on in-memory values. No
// function performs I/O or touches shared state, so all of them are safe
// to call concurrently.
package grading

import "math"

const (
	// PassingGrade is the pass/fail boundary on the 1-10 scale.
	PassingGrade = 5.5

	// GradeMin and GradeMax bound every CvTE grade.
	GradeMin = 1.0
	GradeMax = 10.0
)

// GradeResult pairs the raw calculated grade with the grade that is shown
// and persisted. FinalGrade equals the manual override when one is present,
// otherwise CalculatedGrade rounded to one decimal.
type GradeResult struct {
	CalculatedGrade *float64 `json:"calculated_grade"`
	FinalGrade      *float64 `json:"final_grade"`
}

// NewGradeResult applies the override rule. An override always wins and is
// never recomputed; callers clear it explicitly instead.
func NewGradeResult(calculated, override *float64) GradeResult {
	res := GradeResult{CalculatedGrade: calculated}
	switch {
	case override != nil:
		res.FinalGrade = override
	case calculated != nil:
		f := Round1(*calculated)
		res.FinalGrade = &f
	}
	return res
}

// Round1 rounds to one decimal, half away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Round2 rounds to two decimals, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
