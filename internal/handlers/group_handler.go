package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/grading"
	"github.com/gradebook-app/backend/internal/models"
	"gorm.io/gorm"
)

type GroupHandler struct {
	db *gorm.DB
}

func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{db: db}
}

// ownedGroup loads the :id group, scoped to the caller. A miss writes
// the 404 response.
func (h *GroupHandler) ownedGroup(c *gin.Context) (*models.Group, bool) {
	id := c.Param("id")

	query := h.db.Where("id = ?", id)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}

	var group models.Group
	if err := query.First(&group).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	return &group, true
}

func (h *GroupHandler) List(c *gin.Context) {
	schoolYear := c.Query("school_year")
	level := c.Query("level")
	ownerID := c.GetString("owner_id")

	var groups []models.Group
	query := h.db.Order("school_year DESC, name ASC")

	// Filter by owner for non-admins
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}

	if schoolYear != "" {
		query = query.Where("school_year = ?", schoolYear)
	}
	if level != "" {
		query = query.Where("level = ?", level)
	}

	if err := query.Find(&groups).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req struct {
		Name       string `json:"name" binding:"required"`
		Level      string `json:"level"`
		SchoolYear string `json:"school_year" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusForbidden, gin.H{"error": "No user in context"})
		return
	}

	group := models.Group{
		OwnerID:    userID.(uuid.UUID),
		Name:       req.Name,
		Level:      req.Level,
		SchoolYear: req.SchoolYear,
	}

	if err := h.db.Create(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, ok := h.ownedGroup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Update(c *gin.Context) {
	group, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	var req struct {
		Name       string `json:"name"`
		Level      string `json:"level"`
		SchoolYear string `json:"school_year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Level != "" {
		group.Level = req.Level
	}
	if req.SchoolYear != "" {
		group.SchoolYear = req.SchoolYear
	}

	if err := h.db.Save(group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	group, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	// Cascade delete all related data in proper order
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var testIDs []uuid.UUID
		if err := tx.Model(&models.Test{}).Where("group_id = ?", group.ID).Pluck("id", &testIDs).Error; err != nil {
			return err
		}
		if len(testIDs) > 0 {
			if err := tx.Where("test_id IN ?", testIDs).Delete(&models.Score{}).Error; err != nil {
				return err
			}
			if err := tx.Where("test_id IN ?", testIDs).Delete(&models.Grade{}).Error; err != nil {
				return err
			}
			if err := tx.Where("test_id IN ?", testIDs).Delete(&models.TestElement{}).Error; err != nil {
				return err
			}
			if err := tx.Where("test_id IN ?", testIDs).Delete(&models.LevelNorm{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", testIDs).Delete(&models.Test{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.Student{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete group: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group and all related data deleted"})
}

func (h *GroupHandler) GetStudents(c *gin.Context) {
	group, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	var students []models.Student
	if err := h.db.Where("group_id = ?", group.ID).
		Order("last_name ASC, first_name ASC").
		Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, students)
}

// GetLevels lists the distinct level codes present in one group, for
// populating the per-level norm editor.
func (h *GroupHandler) GetLevels(c *gin.Context) {
	group, ok := h.ownedGroup(c)
	if !ok {
		return
	}

	var students []models.Student
	if err := h.db.Where("group_id = ?", group.ID).Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	seen := make(map[string]bool)
	levels := []string{}
	for _, s := range students {
		level := grading.LevelFromProfile(s.Level())
		if level == "" || seen[level] {
			continue
		}
		seen[level] = true
		levels = append(levels, level)
	}
	sort.Strings(levels)

	c.JSON(http.StatusOK, gin.H{"levels": levels})
}
