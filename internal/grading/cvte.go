package grading

import "math"

// Mode selects which CvTE formula variant applies.
type Mode string

const (
	// ModeLegacy is the old relation: grade = (10 - N) * frac + N.
	ModeLegacy Mode = "legacy"
	// ModeOfficial is the central-exam relation: grade = 9 * frac + N.
	ModeOfficial Mode = "official"
	// ModeMain shares the official arithmetic; its N-term is sourced from
	// the main norm table upstream rather than set per test.
	ModeMain Mode = "main"
)

// Norm holds the scoring parameters that map raw points to a 1-10 grade.
type Norm struct {
	MaxPoints int     `json:"max_points"`
	NTerm     float64 `json:"n_term"`
	Mode      Mode    `json:"mode"`
}

// Valid reports whether the norm can grade anything at all.
func (n Norm) Valid() bool {
	return n.MaxPoints > 0
}

// CvTEGrade converts earned points into a grade on the 1-10 scale.
//
// Points are clamped to [0, MaxPoints] before conversion. Zero points is
// always exactly a 1 and a perfect score always exactly a 10, whatever the
// N-term says; in between, the mode formula applies and the result is
// clamped to [1, 10]. The second return value is false when the norm is
// invalid (MaxPoints <= 0) or the points are not a finite number.
//
// The result is not rounded; display rounding is the caller's concern.
func CvTEGrade(pointsEarned float64, norm Norm) (float64, bool) {
	if !norm.Valid() || math.IsNaN(pointsEarned) || math.IsInf(pointsEarned, 0) {
		return 0, false
	}
	max := float64(norm.MaxPoints)
	frac := clamp(pointsEarned, 0, max) / max
	if frac == 0 {
		return GradeMin, true
	}
	if frac == 1 {
		return GradeMax, true
	}
	var grade float64
	switch norm.Mode {
	case ModeLegacy:
		grade = (10-norm.NTerm)*frac + norm.NTerm
	default:
		// official and main share the arithmetic; they differ only in
		// where the N-term comes from.
		grade = 9*frac + norm.NTerm
	}
	return clamp(grade, GradeMin, GradeMax), true
}
