package grading

import (
	"testing"

	"github.com/google/uuid"
)

func newElement(name string, maxPoints int, weight float64) Element {
	return Element{ID: uuid.New(), Name: name, MaxPoints: maxPoints, Weight: weight}
}

func scored(el Element, points float64) ElementScore {
	return ElementScore{ElementID: el.ID, Points: points}
}

func TestCompositeGrade_WeightedAverage(t *testing.T) {
	t.Run("Equal weights", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 20, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 5), scored(b, 10)}, "")
		if !ok || !approx(got, 5.0) {
			t.Errorf("Expected grade 5.0, got %v", got)
		}
	})

	t.Run("Unequal weights", func(t *testing.T) {
		a := newElement("A", 10, 2)
		b := newElement("B", 20, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 8), scored(b, 10)}, "")
		if !ok || !approx(got, 7.0) { // (8*2 + 5*1) / 3
			t.Errorf("Expected grade 7.0, got %v", got)
		}
	})

	t.Run("Unscored element left out", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 20, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 5)}, "")
		if !ok || !approx(got, 5.0) {
			t.Errorf("Expected grade 5.0, got %v", got)
		}
	})

	t.Run("Rounded to two decimals", func(t *testing.T) {
		a := newElement("A", 3, 1)
		got, ok := CompositeGrade([]Element{a}, []ElementScore{scored(a, 2)}, "")
		if !ok || got != 6.67 {
			t.Errorf("Expected grade 6.67, got %v", got)
		}
	})

	t.Run("Zero max points counts as zero", func(t *testing.T) {
		a := newElement("A", 10, 1)
		c := newElement("C", 0, 1)
		got, ok := CompositeGrade([]Element{a, c}, []ElementScore{scored(a, 10), scored(c, 5)}, "")
		if !ok || !approx(got, 5.0) {
			t.Errorf("Expected grade 5.0, got %v", got)
		}
	})
}

func TestCompositeGrade_NoGrade(t *testing.T) {
	t.Run("No scores", func(t *testing.T) {
		a := newElement("A", 10, 1)
		got, ok := CompositeGrade([]Element{a}, nil, "")
		if ok {
			t.Errorf("Expected no grade, got %v", got)
		}
	})

	t.Run("Zero total weight", func(t *testing.T) {
		a := newElement("A", 10, 0)
		got, ok := CompositeGrade([]Element{a}, []ElementScore{scored(a, 5)}, "")
		if ok {
			t.Errorf("Expected no grade, got %v", got)
		}
	})
}

func TestCompositeGrade_Formula(t *testing.T) {
	t.Run("Average of two elements", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 10, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 8), scored(b, 6)}, "(A + B) / 2")
		if !ok || !approx(got, 7.0) {
			t.Errorf("Expected grade 7.0, got %v", got)
		}
	})

	t.Run("Names match case-insensitively", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 10, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 8), scored(b, 6)}, "(a + b) / 2")
		if !ok || !approx(got, 7.0) {
			t.Errorf("Expected grade 7.0, got %v", got)
		}
	})

	t.Run("Decimal comma", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 10, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 8), scored(b, 2)}, "A * 0,5 + B")
		if !ok || !approx(got, 6.0) {
			t.Errorf("Expected grade 6.0, got %v", got)
		}
	})

	t.Run("Longer name substituted first", func(t *testing.T) {
		long := newElement("Part One", 10, 1)
		short := newElement("One", 10, 1)
		got, ok := CompositeGrade([]Element{short, long}, []ElementScore{scored(long, 8), scored(short, 6)}, "Part One + One")
		if !ok || !approx(got, 14.0) {
			t.Errorf("Expected grade 14.0, got %v", got)
		}
	})

	t.Run("Unscored element substitutes zero", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 10, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 8)}, "(A + B) / 2")
		if !ok || !approx(got, 4.0) {
			t.Errorf("Expected grade 4.0, got %v", got)
		}
	})

	t.Run("Result above ten is not clamped", func(t *testing.T) {
		a := newElement("A", 10, 1)
		got, ok := CompositeGrade([]Element{a}, []ElementScore{scored(a, 10)}, "A * 2")
		if !ok || !approx(got, 20.0) {
			t.Errorf("Expected grade 20.0, got %v", got)
		}
	})

	t.Run("Negative result is not clamped", func(t *testing.T) {
		a := newElement("A", 10, 1)
		got, ok := CompositeGrade([]Element{a}, []ElementScore{scored(a, 8)}, "A - 100")
		if !ok || !approx(got, -92.0) {
			t.Errorf("Expected grade -92.0, got %v", got)
		}
	})

	t.Run("Blank formula falls back to weighted average", func(t *testing.T) {
		a := newElement("A", 10, 1)
		b := newElement("B", 20, 1)
		got, ok := CompositeGrade([]Element{a, b}, []ElementScore{scored(a, 5), scored(b, 10)}, "   ")
		if !ok || !approx(got, 5.0) {
			t.Errorf("Expected grade 5.0, got %v", got)
		}
	})
}

func TestCompositeGrade_FormulaRejected(t *testing.T) {
	a := newElement("A", 10, 1)
	scores := []ElementScore{scored(a, 8)}

	tests := []struct {
		name    string
		formula string
	}{
		{"Unresolved name", "A + X"},
		{"Trailing operator", "A +"},
		{"Division by zero", "A / 0"},
		{"Disallowed character", "A + 10%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CompositeGrade([]Element{a}, scores, tt.formula)
			if ok {
				t.Errorf("Expected no grade, got %v", got)
			}
		})
	}
}
