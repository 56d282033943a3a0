package database

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/gradebook-app/backend/internal/config"
	"github.com/gradebook-app/backend/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Silent
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		log.Printf("Opening sqlite database at %s", cfg.Database.Path)
		dialector = sqlite.Open(cfg.Database.DSN)
	case "postgres":
		log.Printf("Attempting database connection with DSN: %s", maskPassword(cfg.Database.DSN))
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		log.Printf("Attempting database connection with DSN: %s", maskPassword(cfg.Database.DSN))
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection successful")
	return db, nil
}

func maskPassword(dsn string) string {
	// Simple password masking for logging
	if len(dsn) > 20 {
		return dsn[:20] + "...***..."
	}
	return "***"
}

func Migrate(db *gorm.DB) error {
	log.Println("Running migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Student{},
		&models.Test{},
		&models.TestElement{},
		&models.LevelNorm{},
		&models.Score{},
		&models.Grade{},
		&models.AuditLog{},
		&models.Job{},
		&models.RefreshToken{},
	)
	if err != nil {
		return err
	}

	// Add performance indexes
	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_students_group ON students(group_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_tests_group ON tests(group_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_scores_student ON scores(student_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_grades_student ON grades(student_id)")

	return nil
}
