package grading

import "strings"

// NormalizeLevel canonicalizes a level key for lookup: surrounding
// whitespace stripped, letters uppercased. "vwo " and "VWO" resolve to the
// same norm.
func NormalizeLevel(level string) string {
	return strings.ToUpper(strings.TrimSpace(level))
}

// LevelFromProfile extracts the level code from a student profile string
// such as "HAVO - Natuur en Techniek". The code is everything left of the
// first " - " separator; a profile without the separator is itself the
// code.
func LevelFromProfile(profile string) string {
	head, _, _ := strings.Cut(profile, " - ")
	return NormalizeLevel(head)
}

// ResolveNorm picks the norm to grade a student with. A matching per-level
// norm replaces the default wholesale; there is no field-by-field merging.
// Missing level, empty overrides or an unmatched key all fall back to the
// default norm.
func ResolveNorm(defaultNorm Norm, levelNorms map[string]Norm, studentLevel string) Norm {
	if len(levelNorms) == 0 {
		return defaultNorm
	}
	key := NormalizeLevel(studentLevel)
	if key == "" {
		return defaultNorm
	}
	for level, n := range levelNorms {
		if NormalizeLevel(level) == key {
			return n
		}
	}
	return defaultNorm
}
