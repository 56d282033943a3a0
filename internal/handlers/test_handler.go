package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/cache"
	"github.com/gradebook-app/backend/internal/grading"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"gorm.io/gorm"
)

type TestHandler struct {
	db     *gorm.DB
	grades *services.GradeService
	cache  *cache.Cache
}

func NewTestHandler(db *gorm.DB, grades *services.GradeService, cache *cache.Cache) *TestHandler {
	return &TestHandler{db: db, grades: grades, cache: cache}
}

func (h *TestHandler) invalidateReports(c *gin.Context, testID, groupID uuid.UUID) {
	h.cache.Invalidate(c.Request.Context(),
		"report:test:"+testID.String(),
		"report:group:"+groupID.String())
}

func (h *TestHandler) List(c *gin.Context) {
	groupID := c.Query("group_id")
	testType := c.Query("test_type")

	var tests []models.Test
	query := h.db.Order("date DESC, created_at DESC")
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}
	if testType != "" {
		query = query.Where("test_type = ?", testType)
	}

	if err := query.Find(&tests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tests)
}

func (h *TestHandler) Create(c *gin.Context) {
	var req struct {
		GroupID       string     `json:"group_id" binding:"required"`
		Name          string     `json:"name" binding:"required"`
		TestType      string     `json:"test_type" binding:"required"`
		Date          *time.Time `json:"date"`
		Weight        *float64   `json:"weight"`
		MaxPoints     int        `json:"max_points"`
		NTerm         *float64   `json:"n_term"`
		NormMode      string     `json:"norm_mode"`
		CustomFormula string     `json:"custom_formula"`
		Elements      []struct {
			Name      string   `json:"name" binding:"required"`
			MaxPoints int      `json:"max_points" binding:"required"`
			Weight    *float64 `json:"weight"`
		} `json:"elements"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TestType != "cvte" && req.TestType != "composite" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Test type must be 'cvte' or 'composite'"})
		return
	}
	if req.NormMode != "" && !validNormMode(req.NormMode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Norm mode must be 'legacy', 'official' or 'main'"})
		return
	}
	if req.TestType == "cvte" && req.MaxPoints <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CvTE tests need a maximum score above zero"})
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

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	test := models.Test{
		OwnerID:       userID.(uuid.UUID),
		GroupID:       groupID,
		Name:          req.Name,
		TestType:      req.TestType,
		Date:          req.Date,
		Weight:        1,
		MaxPoints:     req.MaxPoints,
		NTerm:         1,
		NormMode:      req.NormMode,
		CustomFormula: req.CustomFormula,
	}
	if req.Weight != nil {
		test.Weight = *req.Weight
	}
	if req.NTerm != nil {
		test.NTerm = *req.NTerm
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&test).Error; err != nil {
			return err
		}
		for i, el := range req.Elements {
			element := models.TestElement{
				TestID:    test.ID,
				Name:      el.Name,
				MaxPoints: el.MaxPoints,
				Weight:    1,
				Position:  i,
			}
			if el.Weight != nil {
				element.Weight = *el.Weight
			}
			if err := tx.Create(&element).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created, err := h.grades.LoadTest(test.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *TestHandler) Get(c *gin.Context) {
	id := c.Param("id")

	var test models.Test
	query := h.db.Where("id = ?", id).
		Preload("Elements", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_elements.position ASC")
		}).
		Preload("LevelNorms")
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}

	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}
	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var test models.Test
	query := h.db.Where("id = ?", id)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}

	var req struct {
		Name          string     `json:"name"`
		Date          *time.Time `json:"date"`
		Weight        *float64   `json:"weight"`
		MaxPoints     *int       `json:"max_points"`
		NTerm         *float64   `json:"n_term"`
		NormMode      *string    `json:"norm_mode"`
		CustomFormula *string    `json:"custom_formula"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		test.Name = req.Name
	}
	if req.Date != nil {
		test.Date = req.Date
	}
	if req.Weight != nil {
		test.Weight = *req.Weight
	}

	// These change computed grades, so track them
	gradingChanged := false
	if req.MaxPoints != nil && *req.MaxPoints != test.MaxPoints {
		if test.TestType == "cvte" && *req.MaxPoints <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "CvTE tests need a maximum score above zero"})
			return
		}
		test.MaxPoints = *req.MaxPoints
		gradingChanged = true
	}
	if req.NTerm != nil && *req.NTerm != test.NTerm {
		test.NTerm = *req.NTerm
		gradingChanged = true
	}
	if req.NormMode != nil && *req.NormMode != test.NormMode {
		if !validNormMode(*req.NormMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Norm mode must be 'legacy', 'official' or 'main'"})
			return
		}
		test.NormMode = *req.NormMode
		gradingChanged = true
	}
	if req.CustomFormula != nil && *req.CustomFormula != test.CustomFormula {
		test.CustomFormula = *req.CustomFormula
		gradingChanged = true
	}

	if err := h.db.Save(&test).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if gradingChanged {
		if _, err := h.grades.RecomputeTest(test.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.invalidateReports(c, test.ID, test.GroupID)
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	var test models.Test
	query := h.db.Where("id = ?", id)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		// Delete dependents before the test itself
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.Score{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.TestElement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.LevelNorm{}).Error; err != nil {
			return err
		}
		return tx.Delete(&test).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete test: " + err.Error()})
		return
	}

	h.invalidateReports(c, test.ID, test.GroupID)
	c.JSON(http.StatusOK, gin.H{"message": "Test deleted"})
}

// PutElements replaces a composite test's element list. Elements sent
// with a known ID are updated in place so existing scores stay attached;
// elements left out are removed together with their scores.
func (h *TestHandler) PutElements(c *gin.Context) {
	id := c.Param("id")

	var test models.Test
	query := h.db.Where("id = ?", id)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}
	if test.TestType != "composite" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Elements can only be set on composite tests"})
		return
	}

	var req struct {
		Elements []struct {
			ID        string   `json:"id"`
			Name      string   `json:"name" binding:"required"`
			MaxPoints int      `json:"max_points" binding:"required"`
			Weight    *float64 `json:"weight"`
		} `json:"elements" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, el := range req.Elements {
		if el.MaxPoints <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Element maximum score must be above zero"})
			return
		}
		if el.Weight != nil && *el.Weight < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Element weight cannot be negative"})
			return
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var existing []models.TestElement
		if err := tx.Where("test_id = ?", test.ID).Find(&existing).Error; err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.TestElement, len(existing))
		for _, el := range existing {
			byID[el.ID] = el
		}

		kept := make(map[uuid.UUID]bool, len(req.Elements))
		for i, el := range req.Elements {
			weight := 1.0
			if el.Weight != nil {
				weight = *el.Weight
			}

			if el.ID != "" {
				elementID, err := uuid.Parse(el.ID)
				if err == nil {
					if current, ok := byID[elementID]; ok {
						current.Name = el.Name
						current.MaxPoints = el.MaxPoints
						current.Weight = weight
						current.Position = i
						if err := tx.Save(&current).Error; err != nil {
							return err
						}
						kept[elementID] = true
						continue
					}
				}
			}

			element := models.TestElement{
				TestID:    test.ID,
				Name:      el.Name,
				MaxPoints: el.MaxPoints,
				Weight:    weight,
				Position:  i,
			}
			if err := tx.Create(&element).Error; err != nil {
				return err
			}
			kept[element.ID] = true
		}

		// Remove dropped elements and any scores pointing at them
		for _, el := range existing {
			if kept[el.ID] {
				continue
			}
			if err := tx.Where("element_id = ?", el.ID).Delete(&models.Score{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&el).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.grades.RecomputeTest(test.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.invalidateReports(c, test.ID, test.GroupID)

	updated, err := h.grades.LoadTest(test.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// PutNorms replaces a test's per-level norm set.
func (h *TestHandler) PutNorms(c *gin.Context) {
	id := c.Param("id")

	var test models.Test
	query := h.db.Where("id = ?", id)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}

	var req struct {
		Norms []struct {
			Level     string   `json:"level" binding:"required"`
			MaxPoints int      `json:"max_points" binding:"required"`
			NTerm     *float64 `json:"n_term"`
			NormMode  string   `json:"norm_mode"`
		} `json:"norms" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seen := make(map[string]bool, len(req.Norms))
	for _, n := range req.Norms {
		level := grading.NormalizeLevel(n.Level)
		if level == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Level cannot be blank"})
			return
		}
		if seen[level] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Duplicate level: " + level})
			return
		}
		seen[level] = true
		if n.MaxPoints <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Norm maximum score must be above zero"})
			return
		}
		if n.NormMode != "" && !validNormMode(n.NormMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Norm mode must be 'legacy', 'official' or 'main'"})
			return
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.LevelNorm{}).Error; err != nil {
			return err
		}
		for _, n := range req.Norms {
			norm := models.LevelNorm{
				TestID:    test.ID,
				Level:     grading.NormalizeLevel(n.Level),
				MaxPoints: n.MaxPoints,
				NTerm:     1,
				NormMode:  n.NormMode,
			}
			if n.NTerm != nil {
				norm.NTerm = *n.NTerm
			}
			if err := tx.Create(&norm).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.grades.RecomputeTest(test.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.invalidateReports(c, test.ID, test.GroupID)

	var norms []models.LevelNorm
	if err := h.db.Where("test_id = ?", test.ID).Order("level ASC").Find(&norms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"norms": norms})
}

// CheckFormula dry-runs a custom formula against the test's elements at
// full marks, so the editor can flag typos before anything is saved.
func (h *TestHandler) CheckFormula(c *gin.Context) {
	id := c.Param("id")

	testID, err := uuid.Parse(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid test ID"})
		return
	}

	query := h.db.Where("id = ?", testID)
	if ownerID := c.GetString("owner_id"); ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	var test models.Test
	if err := query.First(&test).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
		return
	}

	var req struct {
		Formula string `json:"formula" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dbElements []models.TestElement
	if err := h.db.Where("test_id = ?", testID).Order("position ASC").Find(&dbElements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	elements := make([]grading.Element, 0, len(dbElements))
	samples := make([]grading.ElementScore, 0, len(dbElements))
	for _, el := range dbElements {
		elements = append(elements, grading.Element{
			ID:        el.ID,
			Name:      el.Name,
			MaxPoints: el.MaxPoints,
			Weight:    el.Weight,
		})
		samples = append(samples, grading.ElementScore{
			ElementID: el.ID,
			Points:    float64(el.MaxPoints),
		})
	}

	grade, ok := grading.CompositeGrade(elements, samples, req.Formula)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "Formula could not be evaluated with the current elements",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "sample_grade": grade})
}

func validNormMode(mode string) bool {
	return mode == "legacy" || mode == "official" || mode == "main"
}
