package grading

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		expected float64
	}{
		{"Single number", "42", 42},
		{"Decimal number", "2.5", 2.5},
		{"Addition", "1+2", 3},
		{"Subtraction", "10-4", 6},
		{"Precedence", "2+3*4", 14},
		{"Parentheses", "(2+3)*4", 20},
		{"Nested parentheses", "((1+2))*3", 9},
		{"Division", "10/4", 2.5},
		{"Left associative subtraction", "8-3-2", 3},
		{"Left associative division", "8/2/2", 2},
		{"Unary minus", "-4+10", 6},
		{"Unary plus", "+5", 5},
		{"Double negation", "-(-3)", 3},
		{"Sign before parentheses", "-(2+3)*2", -10},
		{"Whitespace everywhere", "  1 +\t2 *  3 ", 7},
		{"Decimal arithmetic", "0.1+0.2+0.4", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Expected %v, got error: %v", tt.expected, err)
			}
			if !approx(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"Empty input", ""},
		{"Blank input", "   "},
		{"Trailing operator", "1+"},
		{"Operator pair", "1*/2"},
		{"Missing closing parenthesis", "(1+2"},
		{"Stray closing parenthesis", ")"},
		{"Empty parentheses", "()"},
		{"Letter token", "2*x"},
		{"Bare dot", "."},
		{"Trailing dot", "1."},
		{"Adjacent numbers", "1 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err == nil {
				t.Errorf("Expected error, got %v", got)
			}
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	// Division by zero is not an error; the non-finite result propagates
	// and the caller decides what to do with it.
	t.Run("Positive infinity", func(t *testing.T) {
		got, err := Evaluate("1/0")
		if err != nil {
			t.Fatalf("Expected non-finite value, got error: %v", err)
		}
		if !math.IsInf(got, 1) {
			t.Errorf("Expected +Inf, got %v", got)
		}
	})

	t.Run("Negative infinity", func(t *testing.T) {
		got, err := Evaluate("-1/0")
		if err != nil {
			t.Fatalf("Expected non-finite value, got error: %v", err)
		}
		if !math.IsInf(got, -1) {
			t.Errorf("Expected -Inf, got %v", got)
		}
	})

	t.Run("Zero over zero", func(t *testing.T) {
		got, err := Evaluate("0/0")
		if err != nil {
			t.Fatalf("Expected NaN, got error: %v", err)
		}
		if !math.IsNaN(got) {
			t.Errorf("Expected NaN, got %v", got)
		}
	})
}
