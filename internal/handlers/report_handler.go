package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/cache"
	"github.com/gradebook-app/backend/internal/grading"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"gorm.io/gorm"
)

type ReportHandler struct {
	db     *gorm.DB
	grades *services.GradeService
	cache  *cache.Cache
}

func NewReportHandler(db *gorm.DB, grades *services.GradeService, cache *cache.Cache) *ReportHandler {
	return &ReportHandler{db: db, grades: grades, cache: cache}
}

func (h *ReportHandler) loadTest(c *gin.Context) (*models.Test, bool) {
	id := c.Param("id")

	testID, err := uuid.Parse(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid test ID"})
		return nil, false
	}

	query := h.db.Where("id = ?", testID)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	var test models.Test
	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return nil, false
	}
	return &test, true
}

// Summary serves the cached aggregate view of one test.
func (h *ReportHandler) Summary(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	key := "report:test:" + test.ID.String()
	var summary services.Summary
	if h.cache.Get(c.Request.Context(), key, &summary) {
		c.JSON(http.StatusOK, summary)
		return
	}

	fresh, err := h.grades.TestSummary(test.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.cache.Set(c.Request.Context(), key, fresh)
	c.JSON(http.StatusOK, fresh)
}

// Boundaries returns the points needed for each half-grade step under
// every norm of a CvTE test, for the score chart and the paper answer
// key margin.
func (h *ReportHandler) Boundaries(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}
	if test.TestType != "cvte" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Boundaries are only defined for CvTE tests"})
		return
	}

	precision, err := strconv.ParseFloat(c.DefaultQuery("precision", "0.5"), 64)
	if err != nil || precision <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Precision must be a positive number"})
		return
	}

	loaded, err := h.grades.LoadTest(test.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type boundary struct {
		Grade  float64 `json:"grade"`
		Points float64 `json:"points"`
	}
	type normBoundaries struct {
		Level      string     `json:"level"`
		MaxPoints  int        `json:"max_points"`
		NTerm      float64    `json:"n_term"`
		Mode       string     `json:"mode"`
		Boundaries []boundary `json:"boundaries"`
	}

	var norms []normBoundaries
	for _, nn := range h.grades.TestNorms(loaded) {
		if !nn.Norm.Valid() {
			continue
		}
		rows := make([]boundary, 0, 19)
		for i := 0; i <= 18; i++ {
			target := 1.0 + float64(i)*0.5
			rows = append(rows, boundary{
				Grade:  target,
				Points: grading.PointsForGrade(target, nn.Norm, precision),
			})
		}
		norms = append(norms, normBoundaries{
			Level:      nn.Level,
			MaxPoints:  nn.Norm.MaxPoints,
			NTerm:      nn.Norm.NTerm,
			Mode:       string(nn.Norm.Mode),
			Boundaries: rows,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"test_id":   test.ID,
		"precision": precision,
		"norms":     norms,
	})
}

// StudentAverage is one row of a group report: the test-weighted mean of
// a student's final grades.
type StudentAverage struct {
	StudentID uuid.UUID `json:"student_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Level     string    `json:"level"`
	Graded    int       `json:"graded"`
	Average   *float64  `json:"average"`
	Passing   bool      `json:"passing"`
}

// GroupOverview aggregates a group's final grades across its tests.
type GroupOverview struct {
	GroupID  uuid.UUID        `json:"group_id"`
	Name     string           `json:"name"`
	Tests    int              `json:"tests"`
	Students []StudentAverage `json:"students"`
	Mean     *float64         `json:"mean"`
	PassRate *float64         `json:"pass_rate"`
}

// GroupSummary reports per-student weighted averages over all of a
// group's tests. Test weight scales each grade's share of the average.
func (h *ReportHandler) GroupSummary(c *gin.Context) {
	id := c.Param("id")

	var group models.Group
	query := h.db.Where("id = ?", id)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&group).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	key := "report:group:" + group.ID.String()
	var cached GroupOverview
	if h.cache.Get(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	var students []models.Student
	if err := h.db.Where("group_id = ?", group.ID).
		Order("last_name ASC, first_name ASC").Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var tests []models.Test
	if err := h.db.Where("group_id = ?", group.ID).Find(&tests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	weightByTest := make(map[uuid.UUID]float64, len(tests))
	testIDs := make([]uuid.UUID, 0, len(tests))
	for _, t := range tests {
		weightByTest[t.ID] = t.Weight
		testIDs = append(testIDs, t.ID)
	}

	gradesByStudent := make(map[uuid.UUID][]models.Grade)
	if len(testIDs) > 0 {
		var grades []models.Grade
		if err := h.db.Where("test_id IN ?", testIDs).Find(&grades).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, g := range grades {
			gradesByStudent[g.StudentID] = append(gradesByStudent[g.StudentID], g)
		}
	}

	overview := GroupOverview{
		GroupID:  group.ID,
		Name:     group.Name,
		Tests:    len(tests),
		Students: make([]StudentAverage, 0, len(students)),
	}

	var sum float64
	var withAverage, passed int
	for _, s := range students {
		row := StudentAverage{
			StudentID: s.ID,
			FirstName: s.FirstName,
			LastName:  s.LastName,
			Level:     grading.LevelFromProfile(s.Level()),
		}

		var weightedSum, totalWeight float64
		for _, g := range gradesByStudent[s.ID] {
			if g.FinalGrade == nil {
				continue
			}
			row.Graded++
			weight := weightByTest[g.TestID]
			if weight <= 0 {
				continue
			}
			weightedSum += *g.FinalGrade * weight
			totalWeight += weight
		}
		if totalWeight > 0 {
			avg := grading.Round1(weightedSum / totalWeight)
			row.Average = &avg
			row.Passing = avg >= grading.PassingGrade
			sum += avg
			withAverage++
			if row.Passing {
				passed++
			}
		}

		overview.Students = append(overview.Students, row)
	}

	if withAverage > 0 {
		mean := grading.Round2(sum / float64(withAverage))
		rate := grading.Round1(float64(passed) / float64(withAverage) * 100)
		overview.Mean = &mean
		overview.PassRate = &rate
	}

	h.cache.Set(c.Request.Context(), key, overview)
	c.JSON(http.StatusOK, overview)
}
