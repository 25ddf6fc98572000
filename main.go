package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"waste-rewards-system/handlers"
	"waste-rewards-system/middleware"
	"waste-rewards-system/models"
	"waste-rewards-system/services"
	"waste-rewards-system/utils"
	"waste-rewards-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // 32MB, report/evidence photos only
	})

	// GLOBAL: only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware())

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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Report{},
		&models.CollectedWaste{},
		&models.Transaction{},
		&models.Reward{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	// R2 is optional; without it, images land in the local uploads dir.
	var storage *utils.R2Client
	if os.Getenv("R2_BUCKET_NAME") != "" {
		storage, err = utils.NewR2Client()
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set, storing images in ./uploads")
	}

	oracleURL := os.Getenv("ORACLE_SERVICE_URL")
	if oracleURL == "" {
		log.Fatal("ORACLE_SERVICE_URL environment variable not set")
	}
	oracleToken := os.Getenv("ORACLE_SERVICE_TOKEN")
	if oracleToken == "" {
		log.Fatal("ORACLE_SERVICE_TOKEN environment variable not set")
	}
	oracle := services.NewOracleClient(oracleURL, oracleToken)

	ledgerService := services.NewLedgerService(db)
	notificationService := services.NewNotificationService(db)
	userService := services.NewUserService(db)
	reportService := services.NewReportService(db, ledgerService, notificationService, storage)
	collectionService := services.NewCollectionService(db, ledgerService, notificationService, oracle, storage)
	rewardService := services.NewRewardService(db, ledgerService, notificationService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciler := workers.NewReconciler(db, ledgerService)
	go reconciler.Poll(ctx, 5*time.Minute)

	rewardService.StartExpirySweep()

	handlers.SetupUserRoutes(app, userService, notificationService)
	handlers.SetupReportRoutes(app, reportService)
	handlers.SetupCollectionRoutes(app, collectionService)
	handlers.SetupRewardRoutes(app, rewardService, ledgerService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Reconciliation worker running (every 5m)")
	log.Println("✅ Reward expiry sweep scheduled (hourly)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
