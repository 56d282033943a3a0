package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/models"
	"gorm.io/gorm"
)

var ErrBadJobPayload = errors.New("job payload missing test_id")

// JobService manages the recompute queue. Handlers enqueue work when a
// bulk change touches many tests; the recompute worker drains it.
type JobService struct {
	db     *gorm.DB
	grades *GradeService
}

func NewJobService(db *gorm.DB, grades *GradeService) *JobService {
	return &JobService{db: db, grades: grades}
}

// EnqueueRecompute queues one test for background recomputation.
func (s *JobService) EnqueueRecompute(testID uuid.UUID) (*models.Job, error) {
	job := &models.Job{
		Type:    "recompute_test",
		Payload: models.JSONB{"test_id": testID.String()},
		Status:  "pending",
	}
	if err := s.db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueRecomputeAll queues every test, returning how many jobs were
// created. Useful after a norm policy change that touches the whole
// database.
func (s *JobService) EnqueueRecomputeAll() (int, error) {
	var testIDs []uuid.UUID
	if err := s.db.Model(&models.Test{}).Pluck("id", &testIDs).Error; err != nil {
		return 0, err
	}

	for _, id := range testIDs {
		if _, err := s.EnqueueRecompute(id); err != nil {
			return 0, err
		}
	}
	return len(testIDs), nil
}

// RunPending claims up to limit pending recompute jobs and runs them.
// A failing job is marked failed and does not stop the rest.
func (s *JobService) RunPending(limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []models.Job
	err := s.db.
		Where("type = ? AND status = ?", "recompute_test", "pending").
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range jobs {
		s.runJob(&jobs[i])
		processed++
	}
	return processed, nil
}

func (s *JobService) runJob(job *models.Job) {
	s.db.Model(job).Updates(map[string]interface{}{
		"status":   "running",
		"attempts": gorm.Expr("attempts + 1"),
	})

	testID, err := jobTestID(job)
	if err == nil {
		var count int
		count, err = s.grades.RecomputeTest(testID)
		if err == nil {
			s.finishJob(job, "done", models.JSONB{"recomputed": count})
			return
		}
	}

	s.finishJob(job, "failed", models.JSONB{"error": err.Error()})
}

func (s *JobService) finishJob(job *models.Job, status string, result models.JSONB) {
	now := time.Now()
	s.db.Model(job).Updates(map[string]interface{}{
		"status":      status,
		"result":      result,
		"finished_at": &now,
	})
}

func jobTestID(job *models.Job) (uuid.UUID, error) {
	raw, ok := job.Payload["test_id"].(string)
	if !ok {
		return uuid.Nil, ErrBadJobPayload
	}
	return uuid.Parse(raw)
}
