package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/config"
	"github.com/gradebook-app/backend/internal/grading"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	ErrTestNotFound  = errors.New("test not found")
	ErrGradeNotFound = errors.New("grade not found")
	ErrNoOverride    = errors.New("no manual override set")
)

var gradeComputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "grade_computations_total",
	Help: "Completed grade computations by test type.",
}, []string{"test_type"})

// GradeService turns stored tests, students and scores into Grade rows.
// All arithmetic lives in the grading package; this service feeds it and
// persists what comes back.
type GradeService struct {
	db    *gorm.DB
	cfg   *config.Config
	audit *AuditService
}

func NewGradeService(db *gorm.DB, cfg *config.Config, audit *AuditService) *GradeService {
	return &GradeService{db: db, cfg: cfg, audit: audit}
}

// Computation is the outcome of running the engine for one student.
type Computation struct {
	Calculated *float64
	NormLevel  string
	Reason     string
}

// ComputeForStudent runs the grade engine over in-memory records. It
// never touches the database, so it can be called on unsaved drafts.
func (s *GradeService) ComputeForStudent(test *models.Test, student *models.Student, scores []models.Score) Computation {
	switch test.TestType {
	case "composite":
		return s.computeComposite(test, scores)
	case "cvte":
		return s.computeCvTE(test, student, scores)
	default:
		return Computation{Reason: fmt.Sprintf("unknown test type %q", test.TestType)}
	}
}

func (s *GradeService) computeComposite(test *models.Test, scores []models.Score) Computation {
	elements := make([]grading.Element, 0, len(test.Elements))
	for _, el := range test.Elements {
		elements = append(elements, grading.Element{
			ID:        el.ID,
			Name:      el.Name,
			MaxPoints: el.MaxPoints,
			Weight:    el.Weight,
		})
	}

	elementScores := make([]grading.ElementScore, 0, len(scores))
	for _, sc := range scores {
		if sc.ElementID == nil {
			continue
		}
		elementScores = append(elementScores, grading.ElementScore{
			ElementID: *sc.ElementID,
			Points:    sc.Points,
		})
	}

	if len(elementScores) == 0 {
		return Computation{Reason: "no scores entered"}
	}

	grade, ok := grading.CompositeGrade(elements, elementScores, test.CustomFormula)
	if !ok {
		if strings.TrimSpace(test.CustomFormula) != "" {
			return Computation{Reason: "custom formula failed to evaluate"}
		}
		return Computation{Reason: "total element weight is zero"}
	}

	reason := fmt.Sprintf("weighted average of %d of %d elements", len(elementScores), len(test.Elements))
	if strings.TrimSpace(test.CustomFormula) != "" {
		reason = fmt.Sprintf("custom formula over %d elements", len(test.Elements))
	}
	return Computation{Calculated: &grade, Reason: reason}
}

func (s *GradeService) computeCvTE(test *models.Test, student *models.Student, scores []models.Score) Computation {
	var points *float64
	for _, sc := range scores {
		if sc.ElementID == nil {
			p := sc.Points
			points = &p
			break
		}
	}
	if points == nil {
		return Computation{Reason: "no score entered"}
	}

	norm, normLevel := s.resolveNorm(test, student)
	grade, ok := grading.CvTEGrade(*points, norm)
	if !ok {
		return Computation{Reason: "norm has no maximum score"}
	}

	reason := fmt.Sprintf("%g/%d points, N-term %g, %s mode", *points, norm.MaxPoints, norm.NTerm, norm.Mode)
	if normLevel != "" {
		reason += fmt.Sprintf(", %s norm applied", normLevel)
	}
	return Computation{Calculated: &grade, NormLevel: normLevel, Reason: reason}
}

// defaultNorm builds the test-wide norm, falling back to the configured
// mode when the test leaves it blank.
func (s *GradeService) defaultNorm(test *models.Test) grading.Norm {
	mode := test.NormMode
	if mode == "" {
		mode = s.cfg.Grading.DefaultMode
	}
	return grading.Norm{
		MaxPoints: test.MaxPoints,
		NTerm:     test.NTerm,
		Mode:      grading.Mode(mode),
	}
}

// levelNorm builds the norm for one level override, inheriting the mode
// from fallback when unset.
func levelNorm(ln models.LevelNorm, fallback grading.Mode) grading.Norm {
	mode := grading.Mode(ln.NormMode)
	if mode == "" {
		mode = fallback
	}
	return grading.Norm{MaxPoints: ln.MaxPoints, NTerm: ln.NTerm, Mode: mode}
}

// resolveNorm picks the norm for this student and reports which level
// norm matched, if any. An empty level means the default norm was used.
func (s *GradeService) resolveNorm(test *models.Test, student *models.Student) (grading.Norm, string) {
	defaultNorm := s.defaultNorm(test)

	levelNorms := make(map[string]grading.Norm, len(test.LevelNorms))
	for _, ln := range test.LevelNorms {
		levelNorms[grading.NormalizeLevel(ln.Level)] = levelNorm(ln, defaultNorm.Mode)
	}

	level := grading.LevelFromProfile(student.Level())
	norm := grading.ResolveNorm(defaultNorm, levelNorms, level)
	if _, ok := levelNorms[level]; !ok || level == "" {
		level = ""
	}
	return norm, level
}

// LoadTest fetches a test with its elements and level norms.
func (s *GradeService) LoadTest(testID uuid.UUID) (*models.Test, error) {
	var test models.Test
	err := s.db.
		Preload("Elements", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("LevelNorms").
		First(&test, "id = ?", testID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &test, nil
}

// SaveGrade computes and upserts the Grade row for one student. A manual
// override on the existing row is kept as the final grade; only the
// calculated side is refreshed.
func (s *GradeService) SaveGrade(test *models.Test, student *models.Student, scores []models.Score) (*models.Grade, error) {
	comp := s.ComputeForStudent(test, student, scores)

	var grade models.Grade
	err := s.db.Where("test_id = ? AND student_id = ?", test.ID, student.ID).First(&grade).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		grade = models.Grade{TestID: test.ID, StudentID: student.ID}
	}

	res := grading.NewGradeResult(comp.Calculated, grade.ManualOverride)
	grade.CalculatedGrade = res.CalculatedGrade
	grade.FinalGrade = res.FinalGrade
	grade.NormLevel = comp.NormLevel
	grade.ComputationReason = comp.Reason
	grade.ComputedAt = time.Now()

	if err := s.db.Save(&grade).Error; err != nil {
		return nil, err
	}

	gradeComputations.WithLabelValues(test.TestType).Inc()
	return &grade, nil
}

// RecomputeStudent reloads one student's scores and refreshes their grade.
func (s *GradeService) RecomputeStudent(test *models.Test, studentID uuid.UUID) (*models.Grade, error) {
	var student models.Student
	if err := s.db.First(&student, "id = ?", studentID).Error; err != nil {
		return nil, err
	}

	var scores []models.Score
	if err := s.db.Where("test_id = ? AND student_id = ?", test.ID, studentID).Find(&scores).Error; err != nil {
		return nil, err
	}

	return s.SaveGrade(test, &student, scores)
}

// RecomputeTest refreshes grades for every student in the test's group
// and returns how many were recomputed.
func (s *GradeService) RecomputeTest(testID uuid.UUID) (int, error) {
	test, err := s.LoadTest(testID)
	if err != nil {
		return 0, err
	}

	var students []models.Student
	if err := s.db.Where("group_id = ?", test.GroupID).Find(&students).Error; err != nil {
		return 0, err
	}

	var scores []models.Score
	if err := s.db.Where("test_id = ?", testID).Find(&scores).Error; err != nil {
		return 0, err
	}

	byStudent := make(map[uuid.UUID][]models.Score)
	for _, sc := range scores {
		byStudent[sc.StudentID] = append(byStudent[sc.StudentID], sc)
	}

	count := 0
	for i := range students {
		if _, err := s.SaveGrade(test, &students[i], byStudent[students[i].ID]); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ApplyOverride pins the final grade to a manually entered value. The
// calculated grade stays untouched so clearing the override restores it.
func (s *GradeService) ApplyOverride(testID, studentID uuid.UUID, value float64, actorID uuid.UUID, ip string) (*models.Grade, error) {
	var grade models.Grade
	err := s.db.Where("test_id = ? AND student_id = ?", testID, studentID).First(&grade).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		grade = models.Grade{TestID: testID, StudentID: studentID}
	}

	before := models.JSONB{"final_grade": grade.FinalGrade, "manual_override": grade.ManualOverride}

	grade.ManualOverride = &value
	grade.FinalGrade = &value
	if err := s.db.Save(&grade).Error; err != nil {
		return nil, err
	}

	after := models.JSONB{"final_grade": grade.FinalGrade, "manual_override": grade.ManualOverride}
	s.audit.Log(actorID, "grade.override", "grade", grade.ID, before, after, ip)
	return &grade, nil
}

// ClearOverride removes a manual override and lets the calculated grade
// through again.
func (s *GradeService) ClearOverride(testID, studentID uuid.UUID, actorID uuid.UUID, ip string) (*models.Grade, error) {
	var grade models.Grade
	if err := s.db.Where("test_id = ? AND student_id = ?", testID, studentID).First(&grade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGradeNotFound
		}
		return nil, err
	}
	if grade.ManualOverride == nil {
		return nil, ErrNoOverride
	}

	before := models.JSONB{"final_grade": grade.FinalGrade, "manual_override": grade.ManualOverride}

	grade.ManualOverride = nil
	res := grading.NewGradeResult(grade.CalculatedGrade, nil)
	grade.FinalGrade = res.FinalGrade
	if err := s.db.Save(&grade).Error; err != nil {
		return nil, err
	}

	after := models.JSONB{"final_grade": grade.FinalGrade, "manual_override": grade.ManualOverride}
	s.audit.Log(actorID, "grade.override_cleared", "grade", grade.ID, before, after, ip)
	return &grade, nil
}

// LevelThreshold reports the minimum whole points for a passing grade
// under one norm.
type LevelThreshold struct {
	Level         string  `json:"level"`
	MaxPoints     int     `json:"max_points"`
	PassingPoints float64 `json:"passing_points"`
}

// Summary aggregates a test's grades for reporting.
type Summary struct {
	TestID       uuid.UUID        `json:"test_id"`
	TestType     string           `json:"test_type"`
	Students     int              `json:"students"`
	Graded       int              `json:"graded"`
	Overridden   int              `json:"overridden"`
	Mean         *float64         `json:"mean"`
	PassRate     *float64         `json:"pass_rate"`
	Distribution map[string]int   `json:"distribution"`
	Thresholds   []LevelThreshold `json:"thresholds,omitempty"`
}

// TestSummary builds the aggregate view of one test: mean, pass rate,
// a 1-10 distribution and, for CvTE tests, the passing threshold per
// norm.
func (s *GradeService) TestSummary(testID uuid.UUID) (*Summary, error) {
	test, err := s.LoadTest(testID)
	if err != nil {
		return nil, err
	}

	var students int64
	if err := s.db.Model(&models.Student{}).Where("group_id = ?", test.GroupID).Count(&students).Error; err != nil {
		return nil, err
	}

	var grades []models.Grade
	if err := s.db.Where("test_id = ?", testID).Find(&grades).Error; err != nil {
		return nil, err
	}

	summary := &Summary{
		TestID:       test.ID,
		TestType:     test.TestType,
		Students:     int(students),
		Distribution: make(map[string]int),
	}

	var sum float64
	var passed int
	for _, g := range grades {
		if g.ManualOverride != nil {
			summary.Overridden++
		}
		if g.FinalGrade == nil {
			continue
		}
		summary.Graded++
		sum += *g.FinalGrade
		if *g.FinalGrade >= grading.PassingGrade {
			passed++
		}
		bucket := int(math.Round(*g.FinalGrade))
		if bucket < 1 {
			bucket = 1
		}
		if bucket > 10 {
			bucket = 10
		}
		summary.Distribution[strconv.Itoa(bucket)]++
	}

	if summary.Graded > 0 {
		mean := grading.Round2(sum / float64(summary.Graded))
		rate := grading.Round1(float64(passed) / float64(summary.Graded) * 100)
		summary.Mean = &mean
		summary.PassRate = &rate
	}

	if test.TestType == "cvte" {
		for _, nn := range s.TestNorms(test) {
			if !nn.Norm.Valid() {
				continue
			}
			summary.Thresholds = append(summary.Thresholds, LevelThreshold{
				Level:         nn.Level,
				MaxPoints:     nn.Norm.MaxPoints,
				PassingPoints: grading.PassingPoints(nn.Norm),
			})
		}
	}

	return summary, nil
}

// NamedNorm pairs a norm with the level it applies to. An empty level is
// the test-wide default.
type NamedNorm struct {
	Level string
	Norm  grading.Norm
}

// TestNorms lists the default norm followed by each level norm, levels
// normalized.
func (s *GradeService) TestNorms(test *models.Test) []NamedNorm {
	def := s.defaultNorm(test)
	norms := []NamedNorm{{Level: "", Norm: def}}
	for _, ln := range test.LevelNorms {
		norms = append(norms, NamedNorm{
			Level: grading.NormalizeLevel(ln.Level),
			Norm:  levelNorm(ln, def.Mode),
		})
	}
	return norms
}
