package grading

import "testing"

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{" vwo ", "VWO"},
		{"Havo", "HAVO"},
		{"M/K", "M/K"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if got := NormalizeLevel(tt.in); got != tt.expected {
				t.Errorf("Level %q: expected %q, got %q", tt.in, tt.expected, got)
			}
		})
	}
}

func TestLevelFromProfile(t *testing.T) {
	tests := []struct {
		name     string
		profile  string
		expected string
	}{
		{"Profile with track", "HAVO - Natuur en Techniek", "HAVO"},
		{"First separator wins", "vwo - Cultuur - Oud", "VWO"},
		{"Hyphen without spaces kept", "VMBO-T", "VMBO-T"},
		{"Bare level", " havo ", "HAVO"},
		{"Empty profile", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelFromProfile(tt.profile); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestResolveNorm(t *testing.T) {
	defaultNorm := Norm{MaxPoints: 40, NTerm: 1.0, Mode: ModeOfficial}
	vwoNorm := Norm{MaxPoints: 45, NTerm: 0.5, Mode: ModeLegacy}

	t.Run("No overrides", func(t *testing.T) {
		got := ResolveNorm(defaultNorm, nil, "VWO")
		if got != defaultNorm {
			t.Errorf("Expected default norm, got %+v", got)
		}
	})

	t.Run("Empty level", func(t *testing.T) {
		got := ResolveNorm(defaultNorm, map[string]Norm{"VWO": vwoNorm}, "  ")
		if got != defaultNorm {
			t.Errorf("Expected default norm, got %+v", got)
		}
	})

	t.Run("Case-insensitive match", func(t *testing.T) {
		got := ResolveNorm(defaultNorm, map[string]Norm{"VWO": vwoNorm}, " vwo ")
		if got != vwoNorm {
			t.Errorf("Expected override norm, got %+v", got)
		}
	})

	t.Run("Unnormalized stored key", func(t *testing.T) {
		got := ResolveNorm(defaultNorm, map[string]Norm{" vwo ": vwoNorm}, "VWO")
		if got != vwoNorm {
			t.Errorf("Expected override norm, got %+v", got)
		}
	})

	t.Run("Whole norm replaced", func(t *testing.T) {
		// An override swaps every field at once; nothing is merged in
		// from the default.
		got := ResolveNorm(defaultNorm, map[string]Norm{"VWO": vwoNorm}, "VWO")
		if got.MaxPoints != 45 || got.NTerm != 0.5 || got.Mode != ModeLegacy {
			t.Errorf("Expected %+v, got %+v", vwoNorm, got)
		}
	})

	t.Run("Unknown level falls back", func(t *testing.T) {
		got := ResolveNorm(defaultNorm, map[string]Norm{"VWO": vwoNorm}, "HAVO")
		if got != defaultNorm {
			t.Errorf("Expected default norm, got %+v", got)
		}
	})
}

func TestResolveNorm_RoundTrip(t *testing.T) {
	// Grading through the resolver must equal grading directly with the
	// matched norm.
	defaultNorm := Norm{MaxPoints: 40, NTerm: 1.0, Mode: ModeOfficial}
	havoNorm := Norm{MaxPoints: 36, NTerm: 1.5, Mode: ModeOfficial}
	overrides := map[string]Norm{"HAVO": havoNorm}

	for points := 0.0; points <= 36; points += 3 {
		resolved, okR := CvTEGrade(points, ResolveNorm(defaultNorm, overrides, "havo"))
		direct, okD := CvTEGrade(points, havoNorm)
		if okR != okD || resolved != direct {
			t.Errorf("Points %.0f: resolver gave %v, direct norm gave %v", points, resolved, direct)
		}
	}
}
