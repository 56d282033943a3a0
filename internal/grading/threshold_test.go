package grading

import "testing"

func TestPointsForGrade(t *testing.T) {
	tests := []struct {
		name     string
		target   float64
		norm     Norm
		step     float64
		expected float64
	}{
		{"Passing boundary", 5.5, Norm{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial}, 1, 23},
		{"Lowest grade needs nothing", 1.0, Norm{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial}, 1, 0},
		{"Top grade needs everything", 10.0, Norm{MaxPoints: 40, NTerm: 0.0, Mode: ModeOfficial}, 1, 40},
		{"Whole point precision", 5.5, Norm{MaxPoints: 10, NTerm: 0.0, Mode: ModeOfficial}, 1, 7},
		{"Half point precision", 5.5, Norm{MaxPoints: 10, NTerm: 0.0, Mode: ModeOfficial}, 0.5, 6.5},
		{"Legacy passing boundary", 5.5, Norm{MaxPoints: 50, NTerm: 1.0, Mode: ModeLegacy}, 1, 25},
		{"Unattainable target", 11.0, Norm{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial}, 1, 40},
		{"Zero step defaults to whole points", 5.5, Norm{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial}, 0, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PointsForGrade(tt.target, tt.norm, tt.step)
			if got != tt.expected {
				t.Errorf("Expected %.1f points, got %.1f", tt.expected, got)
			}
		})
	}
}

func TestPointsForGrade_TightBound(t *testing.T) {
	// The answer must reach the target while the previous step falls
	// short, for every reachable target.
	norm := Norm{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial}

	for target := 1.5; target <= 10.0; target += 0.5 {
		p := PointsForGrade(target, norm, 1)
		at, ok := CvTEGrade(p, norm)
		if !ok || at < target {
			t.Errorf("Target %.1f: %v points grades to %v, below target", target, p, at)
			continue
		}
		if p == 0 {
			continue
		}
		below, ok := CvTEGrade(p-1, norm)
		if !ok || below >= target {
			t.Errorf("Target %.1f: %v points is not minimal, %v points already grades to %v", target, p, p-1, below)
		}
	}
}

func TestPointsForGrade_InvalidNorm(t *testing.T) {
	got := PointsForGrade(5.5, Norm{MaxPoints: 0, NTerm: 1, Mode: ModeOfficial}, 1)
	if got != 0 {
		t.Errorf("Expected 0 points, got %v", got)
	}
}

func TestPassingPoints(t *testing.T) {
	tests := []struct {
		name     string
		norm     Norm
		expected float64
	}{
		{"Official norm", Norm{MaxPoints: 40, NTerm: 0.5, Mode: ModeOfficial}, 23},
		{"Legacy norm", Norm{MaxPoints: 50, NTerm: 1.0, Mode: ModeLegacy}, 25},
		{"Generous term", Norm{MaxPoints: 40, NTerm: 2.0, Mode: ModeOfficial}, 16}, // 9*16/40+2 = 5.6
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PassingPoints(tt.norm)
			if got != tt.expected {
				t.Errorf("Expected %.0f points, got %.0f", tt.expected, got)
			}
		})
	}
}
