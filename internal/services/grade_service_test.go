package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/config"
	"github.com/gradebook-app/backend/internal/models"
)

func testGradeService() *GradeService {
	return &GradeService{cfg: &config.Config{
		Grading: config.GradingConfig{DefaultNTerm: 1.0, DefaultMode: "official"},
	}}
}

func element(name string, maxPoints int, weight float64) models.TestElement {
	return models.TestElement{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Name:      name,
		MaxPoints: maxPoints,
		Weight:    weight,
	}
}

func elementScore(el models.TestElement, points float64) models.Score {
	id := el.ID
	return models.Score{ElementID: &id, Points: points}
}

func wholeTestScore(points float64) models.Score {
	return models.Score{Points: points}
}

func TestComputeForStudent_CvTE(t *testing.T) {
	svc := testGradeService()
	test := &models.Test{TestType: "cvte", MaxPoints: 50, NTerm: 1, NormMode: "official"}
	student := &models.Student{FirstName: "Anna"}

	comp := svc.ComputeForStudent(test, student, []models.Score{wholeTestScore(25)})
	if comp.Calculated == nil || *comp.Calculated != 5.5 {
		t.Errorf("Expected grade 5.5, got %v. Reason: %s", comp.Calculated, comp.Reason)
	}
	if comp.NormLevel != "" {
		t.Errorf("Expected default norm, got level %q", comp.NormLevel)
	}
}

func TestComputeForStudent_CvTENoScore(t *testing.T) {
	svc := testGradeService()
	test := &models.Test{TestType: "cvte", MaxPoints: 50, NTerm: 1, NormMode: "official"}

	comp := svc.ComputeForStudent(test, &models.Student{}, nil)
	if comp.Calculated != nil {
		t.Errorf("Expected no grade, got %v", *comp.Calculated)
	}
	if comp.Reason != "no score entered" {
		t.Errorf("Expected reason 'no score entered', got %q", comp.Reason)
	}
}

func TestComputeForStudent_LevelNorm(t *testing.T) {
	svc := testGradeService()
	test := &models.Test{
		TestType:  "cvte",
		MaxPoints: 50,
		NTerm:     1,
		NormMode:  "official",
		LevelNorms: []models.LevelNorm{
			{Level: "havo", MaxPoints: 40, NTerm: 2, NormMode: "official"},
		},
	}
	student := &models.Student{Profile: "HAVO - Natuur en Techniek"}

	comp := svc.ComputeForStudent(test, student, []models.Score{wholeTestScore(20)})
	if comp.Calculated == nil || *comp.Calculated != 6.5 { // 9*(20/40)+2
		t.Errorf("Expected grade 6.5, got %v. Reason: %s", comp.Calculated, comp.Reason)
	}
	if comp.NormLevel != "HAVO" {
		t.Errorf("Expected norm level HAVO, got %q", comp.NormLevel)
	}
}

func TestComputeForStudent_LevelOverrideWins(t *testing.T) {
	svc := testGradeService()
	test := &models.Test{
		TestType:  "cvte",
		MaxPoints: 50,
		NTerm:     1,
		NormMode:  "official",
		LevelNorms: []models.LevelNorm{
			{Level: "VWO", MaxPoints: 50, NTerm: 0, NormMode: "official"},
		},
	}
	student := &models.Student{Profile: "HAVO - Economie", LevelOverride: "vwo"}

	comp := svc.ComputeForStudent(test, student, []models.Score{wholeTestScore(25)})
	if comp.Calculated == nil || *comp.Calculated != 4.5 { // 9*0.5+0
		t.Errorf("Expected grade 4.5, got %v. Reason: %s", comp.Calculated, comp.Reason)
	}
	if comp.NormLevel != "VWO" {
		t.Errorf("Expected norm level VWO, got %q", comp.NormLevel)
	}
}

func TestComputeForStudent_ModeFallback(t *testing.T) {
	svc := testGradeService()
	// NormMode left blank, the configured default applies
	test := &models.Test{TestType: "cvte", MaxPoints: 50, NTerm: 1}

	comp := svc.ComputeForStudent(test, &models.Student{}, []models.Score{wholeTestScore(25)})
	if comp.Calculated == nil || *comp.Calculated != 5.5 {
		t.Errorf("Expected grade 5.5, got %v. Reason: %s", comp.Calculated, comp.Reason)
	}
}

func TestComputeForStudent_Composite(t *testing.T) {
	svc := testGradeService()
	a := element("A", 10, 1)
	b := element("B", 20, 1)
	test := &models.Test{TestType: "composite", Elements: []models.TestElement{a, b}}

	comp := svc.ComputeForStudent(test, &models.Student{}, []models.Score{
		elementScore(a, 5),
		elementScore(b, 10),
	})
	if comp.Calculated == nil || *comp.Calculated != 5.0 {
		t.Errorf("Expected grade 5.0, got %v. Reason: %s", comp.Calculated, comp.Reason)
	}
}

func TestComputeForStudent_CompositeFormula(t *testing.T) {
	svc := testGradeService()
	a := element("A", 10, 1)
	b := element("B", 10, 1)
	test := &models.Test{
		TestType:      "composite",
		CustomFormula: "(A + B) / 2",
		Elements:      []models.TestElement{a, b},
	}

	comp := svc.ComputeForStudent(test, &models.Student{}, []models.Score{
		elementScore(a, 8),
		elementScore(b, 6),
	})
	if comp.Calculated == nil || *comp.Calculated != 7.0 {
		t.Errorf("Expected grade 7.0, got %v. Reason: %s", comp.Calculated, comp.Reason)
	}
	if !strings.Contains(comp.Reason, "custom formula") {
		t.Errorf("Expected custom formula reason, got %q", comp.Reason)
	}
}

func TestComputeForStudent_CompositeFormulaFails(t *testing.T) {
	svc := testGradeService()
	a := element("A", 10, 1)
	test := &models.Test{
		TestType:      "composite",
		CustomFormula: "A + Mystery",
		Elements:      []models.TestElement{a},
	}

	comp := svc.ComputeForStudent(test, &models.Student{}, []models.Score{elementScore(a, 8)})
	if comp.Calculated != nil {
		t.Errorf("Expected no grade, got %v", *comp.Calculated)
	}
	if comp.Reason != "custom formula failed to evaluate" {
		t.Errorf("Expected formula failure reason, got %q", comp.Reason)
	}
}

func TestComputeForStudent_UnknownType(t *testing.T) {
	svc := testGradeService()
	test := &models.Test{TestType: "quiz"}

	comp := svc.ComputeForStudent(test, &models.Student{}, []models.Score{wholeTestScore(10)})
	if comp.Calculated != nil {
		t.Errorf("Expected no grade, got %v", *comp.Calculated)
	}
}
