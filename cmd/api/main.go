package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gradebook-app/backend/internal/cache"
	"github.com/gradebook-app/backend/internal/config"
	"github.com/gradebook-app/backend/internal/database"
	"github.com/gradebook-app/backend/internal/handlers"
	"github.com/gradebook-app/backend/internal/middleware"
	"github.com/gradebook-app/backend/internal/models"
	"github.com/gradebook-app/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// @title Gradebook API
// @version 1.0
// @description Grading backend for Dutch secondary education: CvTE-normed tests, composite tests and report averages
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if len(os.Args) > 1 {
		handleCommand(os.Args[1])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if cfg.Server.Env == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	if cfg.Monitoring.PrometheusEnabled {
		r.Use(middleware.Metrics())
	}

	// CORS
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		for _, allowedOrigin := range cfg.CORS.Origins {
			if origin == allowedOrigin {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check - simple endpoint that doesn't require DB
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "gradebook-api"})
	})
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Gradebook API", "status": "running"})
	})

	// Metrics
	if cfg.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Services
	authService := services.NewAuthService(db, cfg)
	auditService := services.NewAuditService(db)
	gradeService := services.NewGradeService(db, cfg, auditService)
	jobService := services.NewJobService(db, gradeService)
	reportCache := cache.Connect(cfg)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(db, authService)
	groupHandler := handlers.NewGroupHandler(db)
	studentHandler := handlers.NewStudentHandler(db, gradeService)
	testHandler := handlers.NewTestHandler(db, gradeService, reportCache)
	scoreHandler := handlers.NewScoreHandler(db, gradeService, reportCache)
	gradeHandler := handlers.NewGradeHandler(db, gradeService, reportCache)
	reportHandler := handlers.NewReportHandler(db, gradeService, reportCache)
	auditHandler := handlers.NewAuditHandler(db)

	// Routes
	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
		}

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(authService))
		protected.Use(middleware.OwnershipMiddleware())
		{
			// Admin only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/users", userHandler.List)
				admin.POST("/users", userHandler.Create)
				admin.GET("/users/:id", userHandler.Get)
				admin.PUT("/users/:id", userHandler.Update)
				admin.DELETE("/users/:id", userHandler.Delete)

				// Audit logs
				admin.GET("/audit/recent", auditHandler.GetRecentActivity)

				// Maintenance: queue a recompute of every test
				admin.POST("/admin/recompute-all", func(c *gin.Context) {
					count, err := jobService.EnqueueRecomputeAll()
					if err != nil {
						c.JSON(500, gin.H{"error": err.Error()})
						return
					}
					c.JSON(200, gin.H{"enqueued": count})
				})
				admin.GET("/admin/jobs", func(c *gin.Context) {
					var jobs []models.Job
					if err := db.Order("created_at DESC").Limit(50).Find(&jobs).Error; err != nil {
						c.JSON(500, gin.H{"error": err.Error()})
						return
					}
					c.JSON(200, jobs)
				})
			}

			// Teacher routes (all authenticated users)
			protected.GET("/groups", groupHandler.List)
			protected.POST("/groups", groupHandler.Create)
			protected.GET("/groups/:id", groupHandler.Get)
			protected.PUT("/groups/:id", groupHandler.Update)
			protected.DELETE("/groups/:id", groupHandler.Delete)
			protected.GET("/groups/:id/students", groupHandler.GetStudents)
			protected.GET("/groups/:id/levels", groupHandler.GetLevels)
			protected.GET("/groups/:id/summary", reportHandler.GroupSummary)

			protected.GET("/students", studentHandler.List)
			protected.POST("/students", studentHandler.Create)
			protected.GET("/students/:id", studentHandler.Get)
			protected.PUT("/students/:id", studentHandler.Update)
			protected.DELETE("/students/:id", studentHandler.Delete)
			protected.GET("/students/:id/level", studentHandler.GetLevel)
			protected.PUT("/students/:id/level", studentHandler.SetLevel)
			protected.GET("/students/:id/grades", gradeHandler.ListByStudent)

			protected.GET("/tests", testHandler.List)
			protected.POST("/tests", testHandler.Create)
			protected.GET("/tests/:id", testHandler.Get)
			protected.PUT("/tests/:id", testHandler.Update)
			protected.DELETE("/tests/:id", testHandler.Delete)
			protected.PUT("/tests/:id/elements", testHandler.PutElements)
			protected.PUT("/tests/:id/norms", testHandler.PutNorms)
			protected.POST("/tests/:id/formula/check", testHandler.CheckFormula)

			protected.GET("/tests/:id/scores", scoreHandler.ListByTest)
			protected.PUT("/tests/:id/scores", scoreHandler.BatchUpsert)

			protected.GET("/tests/:id/grades", gradeHandler.ListByTest)
			protected.POST("/tests/:id/grades/recompute", gradeHandler.Recompute)
			protected.PUT("/tests/:id/grades/:studentId/override", gradeHandler.PutOverride)
			protected.DELETE("/tests/:id/grades/:studentId/override", gradeHandler.DeleteOverride)

			protected.GET("/tests/:id/summary", reportHandler.Summary)
			protected.GET("/tests/:id/boundaries", reportHandler.Boundaries)
		}
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func handleCommand(cmd string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	switch cmd {
	case "migrate":
		if err := database.Migrate(db); err != nil {
			log.Fatal("Migration failed:", err)
		}
		log.Println("Migration completed successfully")

	case "seed-admin":
		seedAdmin(db, cfg)

	case "seed-demo":
		seedDemo(db, cfg)

	default:
		log.Printf("Unknown command: %s", cmd)
	}
}

func seedAdmin(db *gorm.DB, cfg *config.Config) {
	if cfg.Server.Env == "production" && cfg.Server.SeedAdminSecret == "" {
		log.Fatal("SEED_ADMIN_SECRET must be set to seed accounts in production")
	}

	authService := services.NewAuthService(db, cfg)

	var count int64
	db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)
	if count > 0 {
		log.Println("Admin already exists")
		return
	}

	admin := &models.User{
		Email:    "admin@gradebook.nl",
		FullName: "Beheerder",
		Role:     "admin",
		IsActive: true,
	}
	if err := authService.CreateUser(admin, "Admin@123"); err != nil {
		log.Fatal("Failed to create admin:", err)
	}
	log.Println("Admin: admin@gradebook.nl / Admin@123")

	teacher := &models.User{
		Email:    "docent@gradebook.nl",
		FullName: "Docent Demo",
		Role:     "teacher",
		IsActive: true,
	}
	if err := authService.CreateUser(teacher, "Docent@123"); err != nil {
		log.Fatal("Failed to create teacher:", err)
	}
	log.Println("Teacher: docent@gradebook.nl / Docent@123")
}

// seedDemo builds one teaching group with students across levels, a
// CvTE test with a VWO level norm and a composite test, then computes
// every grade.
func seedDemo(db *gorm.DB, cfg *config.Config) {
	authService := services.NewAuthService(db, cfg)

	var teacher models.User
	err := db.Where("email = ?", "docent@gradebook.nl").First(&teacher).Error
	if err == gorm.ErrRecordNotFound {
		teacher = models.User{
			Email:    "docent@gradebook.nl",
			FullName: "Docent Demo",
			Role:     "teacher",
			IsActive: true,
		}
		if err := authService.CreateUser(&teacher, "Docent@123"); err != nil {
			log.Fatal("Failed to create teacher:", err)
		}
		log.Println("Teacher: docent@gradebook.nl / Docent@123")
	} else if err != nil {
		log.Fatal("Failed to look up teacher:", err)
	}

	var count int64
	db.Model(&models.Group{}).Where("owner_id = ?", teacher.ID).Count(&count)
	if count > 0 {
		log.Println("Demo data already exists")
		return
	}

	group := models.Group{
		OwnerID:    teacher.ID,
		Name:       "H4A",
		Level:      "HAVO",
		SchoolYear: "2025/2026",
	}
	if err := db.Create(&group).Error; err != nil {
		log.Fatal("Failed to create group:", err)
	}

	students := []models.Student{
		{GroupID: group.ID, FirstName: "Sanne", LastName: "de Vries", Profile: "HAVO - Natuur en Techniek"},
		{GroupID: group.ID, FirstName: "Daan", LastName: "Bakker", Profile: "HAVO - Economie en Maatschappij"},
		{GroupID: group.ID, FirstName: "Lotte", LastName: "van Dijk", Profile: "HAVO - Cultuur en Maatschappij"},
		{GroupID: group.ID, FirstName: "Bram", LastName: "Visser", Profile: "HAVO - Natuur en Gezondheid"},
		{GroupID: group.ID, FirstName: "Fleur", LastName: "Jansen", Profile: "VWO - Natuur en Techniek"},
		{GroupID: group.ID, FirstName: "Milan", LastName: "Smit", Profile: "HAVO - Economie en Maatschappij", LevelOverride: "VWO"},
	}
	if err := db.Create(&students).Error; err != nil {
		log.Fatal("Failed to create students:", err)
	}

	cvteDate := time.Now().AddDate(0, -2, 0)
	cvte := models.Test{
		OwnerID:   teacher.ID,
		GroupID:   group.ID,
		Name:      "Grammatica hoofdstuk 3",
		TestType:  "cvte",
		Date:      &cvteDate,
		Weight:    2,
		MaxPoints: 40,
		NTerm:     1,
		NormMode:  "official",
		LevelNorms: []models.LevelNorm{
			{Level: "VWO", MaxPoints: 40, NTerm: 0.5, NormMode: "official"},
		},
	}
	if err := db.Create(&cvte).Error; err != nil {
		log.Fatal("Failed to create cvte test:", err)
	}

	compositeDate := time.Now().AddDate(0, -1, 0)
	composite := models.Test{
		OwnerID:  teacher.ID,
		GroupID:  group.ID,
		Name:     "Praktische opdracht schrijfvaardigheid",
		TestType: "composite",
		Date:     &compositeDate,
		Weight:   1,
		Elements: []models.TestElement{
			{Name: "Inhoud", MaxPoints: 20, Weight: 2, Position: 0},
			{Name: "Taalgebruik", MaxPoints: 10, Weight: 1, Position: 1},
			{Name: "Presentatie", MaxPoints: 10, Weight: 1, Position: 2},
		},
	}
	if err := db.Create(&composite).Error; err != nil {
		log.Fatal("Failed to create composite test:", err)
	}

	now := time.Now()
	cvtePoints := []float64{31, 24, 18, 27, 33, 29}
	elementPoints := [][]float64{
		{16, 8, 7},
		{13, 6, 8},
		{11, 5, 6},
		{15, 7, 7},
		{18, 9, 8},
		{14, 8, 9},
	}

	var scores []models.Score
	for i, st := range students {
		scores = append(scores, models.Score{
			TestID:    cvte.ID,
			StudentID: st.ID,
			Points:    cvtePoints[i],
			EnteredBy: teacher.ID,
			EnteredAt: now,
		})
		for j, el := range composite.Elements {
			elementID := el.ID
			scores = append(scores, models.Score{
				TestID:    composite.ID,
				StudentID: st.ID,
				ElementID: &elementID,
				Points:    elementPoints[i][j],
				EnteredBy: teacher.ID,
				EnteredAt: now,
			})
		}
	}
	if err := db.CreateInBatches(scores, 100).Error; err != nil {
		log.Fatal("Failed to seed scores:", err)
	}

	gradeService := services.NewGradeService(db, cfg, services.NewAuditService(db))
	for _, test := range []*models.Test{&cvte, &composite} {
		n, err := gradeService.RecomputeTest(test.ID)
		if err != nil {
			log.Fatal("Failed to compute grades:", err)
		}
		log.Printf("Computed %d grades for %s", n, test.Name)
	}

	log.Printf("Seeded group %s with %d students and 2 tests", group.Name, len(students))
}
