// Command recompute refreshes stored grades outside the API server:
// it drains the recompute queue, or recomputes one test or all tests
// directly. With -dry-run it only reports what would change.
package main

import (
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/gradebook-app/backend/internal/config"
	"github.com/gradebook-app/backend/internal/database"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"github.com/peterbourgon/ff/v3"
	"gorm.io/gorm"
)

func main() {
	fs := flag.NewFlagSet("recompute", flag.ExitOnError)
	var (
		testID = fs.String("test-id", "", "recompute a single test by id")
		all    = fs.Bool("all", false, "queue every test and drain the queue")
		limit  = fs.Int("limit", 50, "maximum queued jobs to run in one pass")
		dryRun = fs.Bool("dry-run", false, "report grade changes without saving them")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("GRADEBOOK")); err != nil {
		log.Fatal("Failed to parse flags:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	gradeService := services.NewGradeService(db, cfg, services.NewAuditService(db))
	jobService := services.NewJobService(db, gradeService)

	switch {
	case *testID != "":
		id, err := uuid.Parse(*testID)
		if err != nil {
			log.Fatal("Invalid test id:", err)
		}
		if *dryRun {
			reportChanges(db, gradeService, id)
			return
		}
		n, err := gradeService.RecomputeTest(id)
		if err != nil {
			log.Fatal("Recompute failed:", err)
		}
		log.Printf("Recomputed %d grades", n)

	case *all:
		if *dryRun {
			var ids []uuid.UUID
			if err := db.Model(&models.Test{}).Pluck("id", &ids).Error; err != nil {
				log.Fatal("Failed to list tests:", err)
			}
			for _, id := range ids {
				reportChanges(db, gradeService, id)
			}
			return
		}
		queued, err := jobService.EnqueueRecomputeAll()
		if err != nil {
			log.Fatal("Failed to queue tests:", err)
		}
		log.Printf("Queued %d tests", queued)
		ran, err := jobService.RunPending(*limit)
		if err != nil {
			log.Fatal("Failed to run jobs:", err)
		}
		log.Printf("Ran %d jobs", ran)

	default:
		if *dryRun {
			log.Fatal("-dry-run needs -test-id or -all")
		}
		ran, err := jobService.RunPending(*limit)
		if err != nil {
			log.Fatal("Failed to run jobs:", err)
		}
		log.Printf("Ran %d queued jobs", ran)
	}
}

// reportChanges recomputes one test in memory and prints every student
// whose calculated grade would differ from the stored one.
func reportChanges(db *gorm.DB, grades *services.GradeService, testID uuid.UUID) {
	test, err := grades.LoadTest(testID)
	if err != nil {
		log.Fatal("Failed to load test:", err)
	}

	var students []models.Student
	if err := db.Where("group_id = ?", test.GroupID).
		Order("last_name ASC, first_name ASC").Find(&students).Error; err != nil {
		log.Fatal("Failed to load students:", err)
	}

	var scores []models.Score
	if err := db.Where("test_id = ?", testID).Find(&scores).Error; err != nil {
		log.Fatal("Failed to load scores:", err)
	}
	scoresByStudent := make(map[uuid.UUID][]models.Score)
	for _, sc := range scores {
		scoresByStudent[sc.StudentID] = append(scoresByStudent[sc.StudentID], sc)
	}

	var existing []models.Grade
	if err := db.Where("test_id = ?", testID).Find(&existing).Error; err != nil {
		log.Fatal("Failed to load grades:", err)
	}
	gradeByStudent := make(map[uuid.UUID]models.Grade, len(existing))
	for _, g := range existing {
		gradeByStudent[g.StudentID] = g
	}

	changes := 0
	for _, st := range students {
		comp := grades.ComputeForStudent(test, &st, scoresByStudent[st.ID])

		var stored *float64
		if g, ok := gradeByStudent[st.ID]; ok {
			stored = g.CalculatedGrade
		}
		if equalGrade(stored, comp.Calculated) {
			continue
		}
		changes++
		log.Printf("%s: %s %s -> %s (%s)",
			test.Name, st.FirstName+" "+st.LastName,
			formatGrade(stored), formatGrade(comp.Calculated), comp.Reason)
	}
	log.Printf("%s: %d of %d grades would change", test.Name, changes, len(students))
}

func formatGrade(g *float64) string {
	if g == nil {
		return "-"
	}
	return strconv.FormatFloat(*g, 'f', -1, 64)
}

func equalGrade(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
