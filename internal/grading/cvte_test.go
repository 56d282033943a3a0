package grading

import (
	"math"
	"testing"
)

func TestCvTEGrade_Official(t *testing.T) {
	tests := []struct {
		name      string
		points    float64
		maxPoints int
		nTerm     float64
		expected  float64
	}{
		{"Exact midpoint", 25, 50, 1.0, 5.5}, // 9*0.5+1
		{"Zero points", 0, 50, 1.0, 1.0},
		{"Full points", 50, 50, 1.0, 10.0},
		{"High score", 40, 50, 1.0, 8.2},
		{"Low score", 10, 50, 1.0, 2.8},
		{"Unrounded result", 23, 40, 0.5, 5.675},
		{"High term clamps at top", 49, 50, 2.0, 10.0}, // 9*0.98+2 = 10.82
		{"Zero term clamps at bottom", 1, 20, 0.0, 1.0}, // 9*0.05 = 0.45
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CvTEGrade(tt.points, Norm{MaxPoints: tt.maxPoints, NTerm: tt.nTerm, Mode: ModeOfficial})
			if !ok {
				t.Fatalf("Expected grade %v, got no grade", tt.expected)
			}
			if !approx(got, tt.expected) {
				t.Errorf("Expected grade %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCvTEGrade_Legacy(t *testing.T) {
	tests := []struct {
		name      string
		points    float64
		maxPoints int
		nTerm     float64
		expected  float64
	}{
		{"Midpoint term two", 25, 50, 2.0, 6.0},    // (10-2)*0.5+2
		{"Three quarters", 30, 40, 0.5, 7.625},     // 9.5*0.75+0.5
		{"Midpoint term one", 25, 50, 1.0, 5.5},    // same as official at N=1
		{"Zero points", 0, 50, 2.0, 1.0},
		{"Full points", 50, 50, 0.0, 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CvTEGrade(tt.points, Norm{MaxPoints: tt.maxPoints, NTerm: tt.nTerm, Mode: ModeLegacy})
			if !ok {
				t.Fatalf("Expected grade %v, got no grade", tt.expected)
			}
			if !approx(got, tt.expected) {
				t.Errorf("Expected grade %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCvTEGrade_MainMatchesOfficial(t *testing.T) {
	normMain := Norm{MaxPoints: 60, NTerm: 1.2, Mode: ModeMain}
	normOfficial := Norm{MaxPoints: 60, NTerm: 1.2, Mode: ModeOfficial}

	for points := 0.0; points <= 60; points++ {
		m, okM := CvTEGrade(points, normMain)
		o, okO := CvTEGrade(points, normOfficial)
		if okM != okO || !approx(m, o) {
			t.Errorf("Points %.0f: main gave %v, official gave %v", points, m, o)
		}
	}
}

func TestCvTEGrade_EndpointPinning(t *testing.T) {
	// A blank test is always a 1 and a perfect test is always a 10, no
	// matter which N-term or mode applies.
	modes := []Mode{ModeLegacy, ModeOfficial, ModeMain}
	nTerms := []float64{0, 0.5, 1, 1.5, 2}

	for _, mode := range modes {
		for _, nTerm := range nTerms {
			norm := Norm{MaxPoints: 40, NTerm: nTerm, Mode: mode}
			if got, ok := CvTEGrade(0, norm); !ok || got != GradeMin {
				t.Errorf("Mode %s N=%.1f: expected exactly %v for zero points, got %v", mode, nTerm, GradeMin, got)
			}
			if got, ok := CvTEGrade(40, norm); !ok || got != GradeMax {
				t.Errorf("Mode %s N=%.1f: expected exactly %v for full points, got %v", mode, nTerm, GradeMax, got)
			}
		}
	}
}

func TestCvTEGrade_Monotonic(t *testing.T) {
	norms := []Norm{
		{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial},
		{MaxPoints: 50, NTerm: 2.0, Mode: ModeLegacy},
		{MaxPoints: 73, NTerm: 1.0, Mode: ModeMain},
	}

	for _, norm := range norms {
		prev := 0.0
		for points := 0.0; points <= float64(norm.MaxPoints); points += 0.5 {
			got, ok := CvTEGrade(points, norm)
			if !ok {
				t.Fatalf("Mode %s: no grade at %.1f points", norm.Mode, points)
			}
			if got < prev {
				t.Errorf("Mode %s: grade dropped from %v to %v at %.1f points", norm.Mode, prev, got, points)
			}
			prev = got
		}
	}
}

func TestCvTEGrade_OutOfRangePoints(t *testing.T) {
	norm := Norm{MaxPoints: 40, NTerm: 1.0, Mode: ModeOfficial}

	t.Run("Negative points", func(t *testing.T) {
		got, ok := CvTEGrade(-5, norm)
		ref, _ := CvTEGrade(0, norm)
		if !ok || got != ref {
			t.Errorf("Expected grade %v, got %v", ref, got)
		}
	})

	t.Run("Points above maximum", func(t *testing.T) {
		got, ok := CvTEGrade(45, norm)
		ref, _ := CvTEGrade(40, norm)
		if !ok || got != ref {
			t.Errorf("Expected grade %v, got %v", ref, got)
		}
	})
}

func TestCvTEGrade_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		points float64
		norm   Norm
	}{
		{"Zero max points", 10, Norm{MaxPoints: 0, NTerm: 1, Mode: ModeOfficial}},
		{"Negative max points", 10, Norm{MaxPoints: -5, NTerm: 1, Mode: ModeOfficial}},
		{"NaN points", math.NaN(), Norm{MaxPoints: 40, NTerm: 1, Mode: ModeOfficial}},
		{"Infinite points", math.Inf(1), Norm{MaxPoints: 40, NTerm: 1, Mode: ModeOfficial}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CvTEGrade(tt.points, tt.norm)
			if ok {
				t.Errorf("Expected no grade, got %v", got)
			}
		})
	}
}
