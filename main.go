package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"faith-engagement-system/handlers"
	"faith-engagement-system/middleware"
	"faith-engagement-system/models"
	"faith-engagement-system/services"
	"faith-engagement-system/utils"
	"faith-engagement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB — session reports are small
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.EngagementState{},
		&models.MilestoneAward{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Session-history archiving is optional: the weekly trim runs without it.
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  Session archiving disabled: %v", err)
	}

	startingFreezes := 3
	if v := os.Getenv("STARTING_FREEZES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			startingFreezes = n
		}
	}

	clock := clockwork.NewRealClock()
	engagementService := services.NewEngagementService(db, clock, startingFreezes)
	milestoneService := services.NewMilestoneService(db)
	leaderboardService := services.NewLeaderboardService(db)

	maintenance, err := services.NewMaintenanceScheduler(db, clock, services.LoadSchedulerConfig())
	if err != nil {
		log.Fatal("failed to create maintenance scheduler:", err)
	}
	maintenance.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollLeaderboard(ctx, leaderboardService, 5*time.Minute)

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupEngagementRoutes(app, engagementService, milestoneService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Maintenance scheduler running (daily reconciliation, usage reset, weekly trim)")
	log.Println("✅ Leaderboard snapshot polling running (every 5m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := maintenance.Stop(); err != nil {
		log.Printf("⚠️  Failed to stop maintenance scheduler cleanly: %v", err)
	}
}
