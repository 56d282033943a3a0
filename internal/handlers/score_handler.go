package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/cache"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"gorm.io/gorm"
)

type ScoreHandler struct {
	db     *gorm.DB
	grades *services.GradeService
	cache  *cache.Cache
}

func NewScoreHandler(db *gorm.DB, grades *services.GradeService, cache *cache.Cache) *ScoreHandler {
	return &ScoreHandler{db: db, grades: grades, cache: cache}
}

func (h *ScoreHandler) loadTest(c *gin.Context) (*models.Test, bool) {
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

func (h *ScoreHandler) ListByTest(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	type ScoreWithStudent struct {
		models.Score
		StudentFirstName string `json:"student_first_name"`
		StudentLastName  string `json:"student_last_name"`
	}

	var scores []ScoreWithStudent
	err := h.db.Table("scores").
		Select("scores.*, students.first_name as student_first_name, students.last_name as student_last_name").
		Joins("LEFT JOIN students ON scores.student_id = students.id").
		Where("scores.test_id = ? AND scores.deleted_at IS NULL", test.ID).
		Order("students.last_name ASC, students.first_name ASC").
		Scan(&scores).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, scores)
}

// BatchUpsert writes a sheet of scores in one call. A null points value
// removes the row: a missing score is not the same as zero points. Points
// above the maximum are stored as entered and reported back as warnings.
func (h *ScoreHandler) BatchUpsert(c *gin.Context) {
	test, ok := h.loadTest(c)
	if !ok {
		return
	}

	var req struct {
		Scores []struct {
			StudentID string   `json:"student_id" binding:"required"`
			ElementID *string  `json:"element_id"`
			Points    *float64 `json:"points"`
		} `json:"scores" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	enteredBy := userID.(uuid.UUID)

	// Students of the test's group, for membership checks and warnings
	var students []models.Student
	if err := h.db.Where("group_id = ?", test.GroupID).Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	studentsByID := make(map[uuid.UUID]models.Student, len(students))
	for _, s := range students {
		studentsByID[s.ID] = s
	}

	var elements []models.TestElement
	if err := h.db.Where("test_id = ?", test.ID).Find(&elements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	elementsByID := make(map[uuid.UUID]models.TestElement, len(elements))
	for _, el := range elements {
		elementsByID[el.ID] = el
	}

	warnings := []string{}
	updated := 0
	deleted := 0
	affected := make(map[uuid.UUID]bool)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range req.Scores {
			studentID, err := uuid.Parse(entry.StudentID)
			if err != nil {
				return fmt.Errorf("invalid student ID %q", entry.StudentID)
			}
			student, ok := studentsByID[studentID]
			if !ok {
				return fmt.Errorf("student %s is not in this test's group", entry.StudentID)
			}

			var elementID *uuid.UUID
			if entry.ElementID != nil && *entry.ElementID != "" {
				parsed, err := uuid.Parse(*entry.ElementID)
				if err != nil {
					return fmt.Errorf("invalid element ID %q", *entry.ElementID)
				}
				if _, ok := elementsByID[parsed]; !ok {
					return fmt.Errorf("element %s does not belong to this test", *entry.ElementID)
				}
				elementID = &parsed
			}

			if test.TestType == "composite" && elementID == nil {
				return fmt.Errorf("composite tests take per-element scores")
			}
			if test.TestType == "cvte" && elementID != nil {
				return fmt.Errorf("cvte tests take one whole-test score per student")
			}

			scoreQuery := tx.Where("test_id = ? AND student_id = ?", test.ID, studentID)
			if elementID == nil {
				scoreQuery = scoreQuery.Where("element_id IS NULL")
			} else {
				scoreQuery = scoreQuery.Where("element_id = ?", *elementID)
			}

			var score models.Score
			findErr := scoreQuery.First(&score).Error

			if entry.Points == nil {
				// Null clears the cell
				if findErr == nil {
					if err := tx.Delete(&score).Error; err != nil {
						return err
					}
					deleted++
					affected[studentID] = true
				}
				continue
			}

			points := *entry.Points
			name := student.FirstName + " " + student.LastName
			if elementID != nil {
				el := elementsByID[*elementID]
				if points > float64(el.MaxPoints) {
					warnings = append(warnings, fmt.Sprintf("%s: %g points exceeds maximum %d for %s", name, points, el.MaxPoints, el.Name))
				}
			} else if test.MaxPoints > 0 && points > float64(test.MaxPoints) {
				warnings = append(warnings, fmt.Sprintf("%s: %g points exceeds test maximum %d", name, points, test.MaxPoints))
			}

			if findErr == gorm.ErrRecordNotFound {
				score = models.Score{
					TestID:    test.ID,
					StudentID: studentID,
					ElementID: elementID,
					Points:    points,
					EnteredBy: enteredBy,
					EnteredAt: time.Now(),
				}
				if err := tx.Create(&score).Error; err != nil {
					return err
				}
			} else if findErr != nil {
				return findErr
			} else {
				score.Points = points
				score.EnteredBy = enteredBy
				score.EnteredAt = time.Now()
				if err := tx.Save(&score).Error; err != nil {
					return err
				}
			}
			updated++
			affected[studentID] = true
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Recompute only the students whose scores changed
	if len(affected) > 0 {
		loaded, err := h.grades.LoadTest(test.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for studentID := range affected {
			if _, err := h.grades.RecomputeStudent(loaded, studentID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		h.cache.Invalidate(c.Request.Context(),
			"report:test:"+test.ID.String(),
			"report:group:"+test.GroupID.String())
	}

	c.JSON(http.StatusOK, gin.H{
		"updated":  updated,
		"deleted":  deleted,
		"warnings": warnings,
	})
}
