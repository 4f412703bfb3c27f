package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/config"
	"github.com/classpulse/classpulse-api/internal/database"
	"github.com/classpulse/classpulse-api/internal/handler"
	"github.com/classpulse/classpulse-api/internal/middleware"
	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/observability"
	"github.com/classpulse/classpulse-api/internal/repository"
	"github.com/classpulse/classpulse-api/internal/router"
	"github.com/classpulse/classpulse-api/internal/service"
	"github.com/classpulse/classpulse-api/internal/stream"
	cloud "github.com/classpulse/classpulse-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Class{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.Grade{},
		&models.GradeAuditEntry{},
		&models.GradeCategory{},
		&models.GradeScale{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not configured, change fan-out limited to redis")
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	bus := stream.NewBus(redisClient, cfg.ChannelBase, natsConn, logger)
	bus.Start(busCtx)

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	configRepo := repository.NewGradebookConfigRepository(db)
	classRepo := repository.NewClassRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	assignmentFeed := stream.NewAssignmentFeed(assignmentRepo, bus, logger)
	submissionFeed := stream.NewSubmissionFeed(submissionRepo, bus, logger)
	gradeFeed := stream.NewGradeFeed(gradeRepo, bus, logger)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, validate, uploader, bus, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, validate, uploader, bus, logger)
	gradebookService := service.NewGradebookService(gradeRepo, configRepo, classRepo, validate, redisClient, cfg.GradebookCacheTTL, logger)
	gradingService := service.NewGradingService(gradeRepo, assignmentRepo, submissionRepo, validate, activityService, bus, gradebookService, logger)
	liveFeedService := service.NewLiveFeedService(assignmentFeed, submissionFeed, gradeFeed, classRepo, logger)

	assignmentHandler := handler.NewAssignmentHandler(assignmentService, validate, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, validate, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, validate, logger)
	gradebookHandler := handler.NewGradebookHandler(gradebookService, validate, logger)
	liveFeedHandler := handler.NewLiveFeedHandler(liveFeedService, logger)
	activityHandler := handler.NewActivityHandler(activityService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	app.Get("/metrics", observability.MetricsHandler())

	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: assignmentHandler,
		SubmissionHandler: submissionHandler,
		GradingHandler:    gradingHandler,
		GradebookHandler:  gradebookHandler,
		LiveFeedHandler:   liveFeedHandler,
		ActivityHandler:   activityHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		TeacherOnly:       middleware.RequireRole("teacher", "admin"),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
