package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/cache"
	"github.com/gradebook-app/backend/internal/grading"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"gorm.io/gorm"
)

type GradeHandler struct {
	db     *gorm.DB
	grades *services.GradeService
	cache  *cache.Cache
}

func NewGradeHandler(db *gorm.DB, grades *services.GradeService, cache *cache.Cache) *GradeHandler {
	return &GradeHandler{db: db, grades: grades, cache: cache}
}

func (h *GradeHandler) loadTest(c *gin.Context) (*models.Test, bool) {
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

func (h *GradeHandler) invalidateReports(c *gin.Context, test *models.Test) {
	h.cache.Invalidate(c.Request.Context(),
		"report:test:"+test.ID.String(),
		"report:group:"+test.GroupID.String())
}

func (h *GradeHandler) ListByTest(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	type GradeWithStudent struct {
		models.Grade
		StudentFirstName string `json:"student_first_name"`
		StudentLastName  string `json:"student_last_name"`
	}

	var grades []GradeWithStudent
	err := h.db.Table("grades").
		Select("grades.*, students.first_name as student_first_name, students.last_name as student_last_name").
		Joins("LEFT JOIN students ON grades.student_id = students.id").
		Where("grades.test_id = ? AND grades.deleted_at IS NULL", test.ID).
		Order("students.last_name ASC, students.first_name ASC").
		Scan(&grades).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, grades)
}

// ListByStudent returns a student's grades across all tests, newest first.
func (h *GradeHandler) ListByStudent(c *gin.Context) {
	studentID := c.Param("id")

	groupSub := h.db.Table("groups").Select("id").Where("deleted_at IS NULL")
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		groupSub = groupSub.Where("owner_id = ?", ownerID)
	}

	var student models.Student
	if err := h.db.Where("id = ? AND group_id IN (?)", studentID, groupSub).
		First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	type GradeWithTest struct {
		models.Grade
		TestName   string  `json:"test_name"`
		TestType   string  `json:"test_type"`
		TestWeight float64 `json:"test_weight"`
	}

	var grades []GradeWithTest
	err := h.db.Table("grades").
		Select("grades.*, tests.name as test_name, tests.test_type as test_type, tests.weight as test_weight").
		Joins("LEFT JOIN tests ON grades.test_id = tests.id").
		Where("grades.student_id = ? AND grades.deleted_at IS NULL", student.ID).
		Order("tests.date DESC, tests.created_at DESC").
		Scan(&grades).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, grades)
}

func (h *GradeHandler) Recompute(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	count, err := h.grades.RecomputeTest(test.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.invalidateReports(c, test)
	c.JSON(http.StatusOK, gin.H{"recomputed": count})
}

func (h *GradeHandler) PutOverride(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	studentID, err := uuid.Parse(c.Param("studentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
		return
	}

	var req struct {
		Value *float64 `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Value < grading.GradeMin || *req.Value > grading.GradeMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Override must be between 1 and 10"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	grade, err := h.grades.ApplyOverride(test.ID, studentID, *req.Value, userID.(uuid.UUID), c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.invalidateReports(c, test)
	c.JSON(http.StatusOK, grade)
}

func (h *GradeHandler) DeleteOverride(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	studentID, err := uuid.Parse(c.Param("studentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	grade, err := h.grades.ClearOverride(test.ID, studentID, userID.(uuid.UUID), c.ClientIP())
	if err == services.ErrGradeNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Grade not found"})
		return
	}
	if err == services.ErrNoOverride {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Grade has no override"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.invalidateReports(c, test)
	c.JSON(http.StatusOK, grade)
}
