package grading

import "testing"

func TestNewGradeResult(t *testing.T) {
	calculated := 5.675
	override := 7.25

	t.Run("Calculated only", func(t *testing.T) {
		res := NewGradeResult(&calculated, nil)
		if res.CalculatedGrade == nil || *res.CalculatedGrade != 5.675 {
			t.Errorf("Expected calculated grade 5.675, got %v", res.CalculatedGrade)
		}
		if res.FinalGrade == nil || *res.FinalGrade != 5.7 {
			t.Errorf("Expected final grade 5.7, got %v", res.FinalGrade)
		}
	})

	t.Run("Override wins", func(t *testing.T) {
		res := NewGradeResult(&calculated, &override)
		if res.FinalGrade == nil || *res.FinalGrade != 7.25 {
			t.Errorf("Expected final grade 7.25, got %v", res.FinalGrade)
		}
		if res.CalculatedGrade == nil || *res.CalculatedGrade != 5.675 {
			t.Errorf("Expected calculated grade 5.675, got %v", res.CalculatedGrade)
		}
	})

	t.Run("Override without calculation", func(t *testing.T) {
		res := NewGradeResult(nil, &override)
		if res.FinalGrade == nil || *res.FinalGrade != 7.25 {
			t.Errorf("Expected final grade 7.25, got %v", res.FinalGrade)
		}
		if res.CalculatedGrade != nil {
			t.Errorf("Expected no calculated grade, got %v", *res.CalculatedGrade)
		}
	})

	t.Run("No inputs", func(t *testing.T) {
		res := NewGradeResult(nil, nil)
		if res.CalculatedGrade != nil || res.FinalGrade != nil {
			t.Errorf("Expected empty result, got %+v", res)
		}
	})
}

func TestRounding(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		round    func(float64) float64
		expected float64
	}{
		{"One decimal down", 5.64, Round1, 5.6},
		{"One decimal up", 5.68, Round1, 5.7},
		{"One decimal midpoint", 5.675, Round1, 5.7},
		{"Two decimals down", 3.14159, Round2, 3.14},
		{"Two decimals up", 6.666666, Round2, 6.67},
		{"Negative value", -2.345678, Round2, -2.35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.round(tt.in); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
