package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/grading"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"gorm.io/gorm"
)

type StudentHandler struct {
	db     *gorm.DB
	grades *services.GradeService
}

func NewStudentHandler(db *gorm.DB, grades *services.GradeService) *StudentHandler {
	return &StudentHandler{db: db, grades: grades}
}

// ownedGroups returns a subquery of group ids visible to the caller.
// Admins see everything.
func (h *StudentHandler) ownedGroups(c *gin.Context) *gorm.DB {
	sub := h.db.Table("groups").Select("id").Where("deleted_at IS NULL")
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		sub = sub.Where("owner_id = ?", ownerID)
	}
	return sub
}

func (h *StudentHandler) List(c *gin.Context) {
	groupID := c.Query("group_id")

	var students []models.Student
	query := h.db.Where("group_id IN (?)", h.ownedGroups(c)).
		Order("last_name ASC, first_name ASC")
	if groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}

	if err := query.Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, students)
}

func (h *StudentHandler) Create(c *gin.Context) {
	var req struct {
		GroupID   string `json:"group_id" binding:"required"`
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name"`
		Profile   string `json:"profile"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	// Verify the group belongs to the caller
	var group models.Group
	query := h.db.Where("id = ?", groupID)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&group).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Group not found or access denied"})
		return
	}

	student := models.Student{
		GroupID:   groupID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Profile:   req.Profile,
	}

	if err := h.db.Create(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, student)
}

func (h *StudentHandler) Get(c *gin.Context) {
	id := c.Param("id")

	var student models.Student
	if err := h.db.Where("id = ? AND group_id IN (?)", id, h.ownedGroups(c)).
		First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *StudentHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var student models.Student
	if err := h.db.Where("id = ? AND group_id IN (?)", id, h.ownedGroups(c)).
		First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Profile   string `json:"profile"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profileChanged := false
	if req.FirstName != "" {
		student.FirstName = req.FirstName
	}
	if req.LastName != "" {
		student.LastName = req.LastName
	}
	if req.Profile != student.Profile {
		student.Profile = req.Profile
		profileChanged = true
	}

	if err := h.db.Save(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// A new profile can put the student under a different level norm
	if profileChanged {
		h.recomputeStudent(&student)
	}

	c.JSON(http.StatusOK, student)
}

// GetLevel reports the level code the student is graded under and where
// it came from.
func (h *StudentHandler) GetLevel(c *gin.Context) {
	id := c.Param("id")

	var student models.Student
	if err := h.db.Where("id = ? AND group_id IN (?)", id, h.ownedGroups(c)).
		First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	source := "profile"
	if student.LevelOverride != "" {
		source = "override"
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id":     student.ID,
		"level":          grading.LevelFromProfile(student.Level()),
		"source":         source,
		"profile":        student.Profile,
		"level_override": student.LevelOverride,
	})
}

// SetLevel pins or clears a student's level override. An empty level
// falls back to the profile-derived code.
func (h *StudentHandler) SetLevel(c *gin.Context) {
	id := c.Param("id")

	var student models.Student
	if err := h.db.Where("id = ? AND group_id IN (?)", id, h.ownedGroups(c)).
		First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	var req struct {
		Level string `json:"level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student.LevelOverride = req.Level
	if err := h.db.Save(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.recomputeStudent(&student)

	c.JSON(http.StatusOK, student)
}

// recomputeStudent refreshes this student's grade on every test of their
// group after a level change.
func (h *StudentHandler) recomputeStudent(student *models.Student) {
	var testIDs []uuid.UUID
	if err := h.db.Model(&models.Test{}).
		Where("group_id = ?", student.GroupID).
		Pluck("id", &testIDs).Error; err != nil {
		return
	}

	for _, testID := range testIDs {
		test, err := h.grades.LoadTest(testID)
		if err != nil {
			continue
		}
		h.grades.RecomputeStudent(test, student.ID)
	}
}

func (h *StudentHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	var student models.Student
	if err := h.db.Where("id = ? AND group_id IN (?)", id, h.ownedGroups(c)).
		First(&student).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", student.ID).Delete(&models.Score{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", student.ID).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		return tx.Delete(&student).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete student: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Student deleted"})
}
