package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB custom type for JSON fields
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Base model with UUID
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// User represents system users (admin/teacher)
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	Role         string `gorm:"type:varchar(20);not null" json:"role"`
	FullName     string `gorm:"type:varchar(255);not null" json:"full_name"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	Meta         JSONB  `gorm:"type:json" json:"meta"`
}

// Group represents a teaching group for one school year
type Group struct {
	BaseModel
	OwnerID    uuid.UUID `gorm:"type:char(36);not null;index:idx_group_owner_year" json:"owner_id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	Level      string    `gorm:"type:varchar(50)" json:"level"`
	SchoolYear string    `gorm:"type:varchar(10);not null;index:idx_group_owner_year" json:"school_year"`
	Owner      *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// Student represents a student in a group
type Student struct {
	BaseModel
	GroupID       uuid.UUID `gorm:"type:char(36);not null;index" json:"group_id"`
	FirstName     string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName      string    `gorm:"type:varchar(100)" json:"last_name"`
	Profile       string    `gorm:"type:varchar(255)" json:"profile"`
	LevelOverride string    `gorm:"type:varchar(50)" json:"level_override"`
	Group         *Group    `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// Level returns the raw track string this student is graded under: an
// explicit override first, otherwise the profile. Callers extract the
// level code from it.
func (s *Student) Level() string {
	if s.LevelOverride != "" {
		return s.LevelOverride
	}
	return s.Profile
}

// Test represents a graded test, either CvTE-normed or composite
type Test struct {
	BaseModel
	OwnerID       uuid.UUID     `gorm:"type:char(36);not null;index" json:"owner_id"`
	GroupID       uuid.UUID     `gorm:"type:char(36);not null;index" json:"group_id"`
	Name          string        `gorm:"type:varchar(255);not null" json:"name"`
	TestType      string        `gorm:"type:varchar(20);not null" json:"test_type"`
	Date          *time.Time    `gorm:"type:date" json:"date,omitempty"`
	Weight        float64       `gorm:"default:1" json:"weight"`
	MaxPoints     int           `gorm:"default:0" json:"max_points"`
	NTerm         float64       `gorm:"type:decimal(4,2);default:1" json:"n_term"`
	NormMode      string        `gorm:"type:varchar(20);default:'official'" json:"norm_mode"`
	CustomFormula string        `gorm:"type:text" json:"custom_formula"`
	Meta          JSONB         `gorm:"type:json" json:"meta"`
	Group         *Group        `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Elements      []TestElement `gorm:"foreignKey:TestID" json:"elements,omitempty"`
	LevelNorms    []LevelNorm   `gorm:"foreignKey:TestID" json:"level_norms,omitempty"`
}

// TestElement represents one weighted part of a composite test
type TestElement struct {
	BaseModel
	TestID    uuid.UUID `gorm:"type:char(36);not null;index" json:"test_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	MaxPoints int       `gorm:"not null" json:"max_points"`
	Weight    float64   `gorm:"type:decimal(6,3);default:1" json:"weight"`
	Position  int       `gorm:"default:0" json:"position"`
}

// LevelNorm replaces a test's default norm for one student level
type LevelNorm struct {
	BaseModel
	TestID    uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_norm_test_level" json:"test_id"`
	Level     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_norm_test_level" json:"level"`
	MaxPoints int       `gorm:"not null" json:"max_points"`
	NTerm     float64   `gorm:"type:decimal(4,2);default:1" json:"n_term"`
	NormMode  string    `gorm:"type:varchar(20);default:'official'" json:"norm_mode"`
}

// Score represents points earned by a student, either for the whole test
// (ElementID null) or for one composite element
type Score struct {
	BaseModel
	TestID    uuid.UUID    `gorm:"type:char(36);not null;uniqueIndex:idx_score_test_student_element" json:"test_id"`
	StudentID uuid.UUID    `gorm:"type:char(36);not null;uniqueIndex:idx_score_test_student_element" json:"student_id"`
	ElementID *uuid.UUID   `gorm:"type:char(36);uniqueIndex:idx_score_test_student_element" json:"element_id,omitempty"`
	Points    float64      `gorm:"type:decimal(7,2);not null" json:"points"`
	EnteredBy uuid.UUID    `gorm:"type:char(36);not null" json:"entered_by"`
	EnteredAt time.Time    `json:"entered_at"`
	Student   *Student     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Element   *TestElement `gorm:"foreignKey:ElementID" json:"element,omitempty"`
}

// Grade stores the computed result per student per test
type Grade struct {
	BaseModel
	TestID            uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_grade_test_student" json:"test_id"`
	StudentID         uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_grade_test_student" json:"student_id"`
	CalculatedGrade   *float64  `gorm:"type:decimal(5,2)" json:"calculated_grade"`
	FinalGrade        *float64  `gorm:"type:decimal(5,2)" json:"final_grade"`
	ManualOverride    *float64  `gorm:"type:decimal(5,2)" json:"manual_override"`
	NormLevel         string    `gorm:"type:varchar(50)" json:"norm_level"`
	ComputationReason string    `gorm:"type:text" json:"computation_reason"`
	ComputedAt        time.Time `json:"computed_at"`
	Student           *Student  `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Test              *Test     `gorm:"foreignKey:TestID" json:"test,omitempty"`
}

// AuditLog tracks all data changes
type AuditLog struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	ActorUserID  uuid.UUID `gorm:"type:char(36);index" json:"actor_user_id"`
	Action       string    `gorm:"type:varchar(50);not null" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   uuid.UUID `gorm:"type:char(36);index" json:"resource_id"`
	Before       JSONB     `gorm:"type:json" json:"before"`
	After        JSONB     `gorm:"type:json" json:"after"`
	Timestamp    time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	IP           string    `gorm:"type:varchar(45)" json:"ip"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Job tracks background jobs
type Job struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	Type       string     `gorm:"type:varchar(50);not null;index" json:"type"`
	Payload    JSONB      `gorm:"type:json" json:"payload"`
	Status     string     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Attempts   int        `gorm:"default:0" json:"attempts"`
	Result     JSONB      `gorm:"type:json" json:"result"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// RefreshToken stores refresh tokens for revocation
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;index" json:"user_id"`
	Token     string    `gorm:"type:varchar(500);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"default:false;index" json:"revoked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
