package grading

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Element is one named, weighted line item of a composite test. The name
// doubles as the token a custom formula refers to, so it must be unique
// within its test.
type Element struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	MaxPoints int       `json:"max_points"`
	Weight    float64   `json:"weight"`
}

// ElementScore is the points a student earned on one element. Points may
// exceed the element maximum; the storage layer flags that, the calculator
// does not reject it.
type ElementScore struct {
	ElementID uuid.UUID `json:"element_id"`
	Points    float64   `json:"points"`
}

// formulaCharset matches a fully substituted formula: nothing but digits,
// operators, parentheses and whitespace may remain. Anything else means an
// element name failed to resolve.
var formulaCharset = regexp.MustCompile(`^[0-9\s+\-*/().]*$`)

// CompositeGrade resolves weighted elements into a single grade, either by
// the default weighted average or, when customFormula is non-blank, by
// substituting element scores into the formula and evaluating it.
//
// The result is rounded to two decimals and is NOT clamped to [1, 10]:
// composite grades may exceed those bounds when inputs are unusual. The
// second return value is false when no grade can be computed (no scores,
// zero total weight, or a formula that fails to evaluate to a finite
// number).
func CompositeGrade(elements []Element, scores []ElementScore, customFormula string) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	if strings.TrimSpace(customFormula) != "" {
		return formulaGrade(elements, scores, customFormula)
	}
	return weightedGrade(elements, scores)
}

func scoresByElement(scores []ElementScore) map[uuid.UUID]float64 {
	byElement := make(map[uuid.UUID]float64, len(scores))
	for _, s := range scores {
		byElement[s.ElementID] = s.Points
	}
	return byElement
}

// weightedGrade normalizes every scored element to the 0-10 scale and
// averages the results by weight. Elements without a score stay out of the
// average entirely; they do not count as zero.
func weightedGrade(elements []Element, scores []ElementScore) (float64, bool) {
	byElement := scoresByElement(scores)
	var sum, totalWeight float64
	for _, el := range elements {
		points, scored := byElement[el.ID]
		if !scored {
			continue
		}
		normalized := 0.0
		if el.MaxPoints > 0 {
			normalized = points / float64(el.MaxPoints) * 10
		}
		sum += normalized * el.Weight
		totalWeight += el.Weight
	}
	if totalWeight == 0 {
		return 0, false
	}
	return Round2(sum / totalWeight), true
}

// formulaGrade substitutes element scores into the user formula by name and
// evaluates the result. Names are matched case-insensitively on word
// boundaries, longest name first, so that a name embedded in another is
// never replaced halfway. Unscored elements substitute as 0.
func formulaGrade(elements []Element, scores []ElementScore, formula string) (float64, bool) {
	byElement := scoresByElement(scores)

	sorted := make([]Element, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(strings.TrimSpace(sorted[i].Name)) > len(strings.TrimSpace(sorted[j].Name))
	})

	text := formula
	for _, el := range sorted {
		name := strings.TrimSpace(el.Name)
		if name == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			return 0, false
		}
		points := byElement[el.ID]
		text = re.ReplaceAllLiteralString(text, strconv.FormatFloat(points, 'f', -1, 64))
	}

	// Users type decimal commas; the evaluator grammar wants dots.
	text = strings.ReplaceAll(text, ",", ".")
	if !formulaCharset.MatchString(text) {
		return 0, false
	}

	v, err := Evaluate(text)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return Round2(v), true
}
