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

	"github.com/codecourt/codecourt-api/internal/config"
	"github.com/codecourt/codecourt-api/internal/database"
	"github.com/codecourt/codecourt-api/internal/handler"
	"github.com/codecourt/codecourt-api/internal/middleware"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
	"github.com/codecourt/codecourt-api/internal/router"
	"github.com/codecourt/codecourt-api/internal/service"
	"github.com/codecourt/codecourt-api/pkg/judge"
	"github.com/codecourt/codecourt-api/pkg/sandbox"
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
		&models.Admin{},
		&models.Assignment{},
		&models.Problem{},
		&models.TestCase{},
		&models.Submission{},
		&models.AssignmentSession{},
		&models.Violation{},
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
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	judgeClient, err := buildJudgeClient(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create judge client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	testCaseRepo := repository.NewTestCaseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	violationRepo := repository.NewViolationRepository(db)

	feedService := service.NewProctorFeedService(redisClient, cfg.RedisChannelBase, natsConn, logger)

	authService := service.NewAuthService(studentRepo, validate, logger, service.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	})
	assignmentService := service.NewAssignmentService(assignmentRepo, problemRepo, submissionRepo, validate, logger)
	problemService := service.NewProblemService(problemRepo, testCaseRepo, assignmentRepo, validate, logger)
	proctorService := service.NewProctorService(sessionRepo, violationRepo, assignmentRepo, feedService, validate, logger)
	gradingService := service.NewGradingService(submissionRepo, sessionRepo, assignmentRepo, problemRepo, testCaseRepo, judgeClient, feedService, validate, logger)
	dashboardService := service.NewDashboardService(assignmentRepo, submissionRepo, sessionRepo, violationRepo, redisClient, cfg.DashboardCacheTTL, logger)

	authHandler := handler.NewAuthHandler(authService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	problemHandler := handler.NewProblemHandler(problemService, logger)
	submissionHandler := handler.NewSubmissionHandler(gradingService, logger)
	proctorHandler := handler.NewProctorHandler(proctorService, logger)
	proctorAdminHandler := handler.NewProctorAdminHandler(proctorService, dashboardService, feedService, logger, cfg.SSEKeepAlive)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, logger)

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	feedService.Start(feedCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         authHandler,
		AssignmentHandler:   assignmentHandler,
		ProblemHandler:      problemHandler,
		SubmissionHandler:   submissionHandler,
		ProctorHandler:      proctorHandler,
		ProctorAdminHandler: proctorAdminHandler,
		DashboardHandler:    dashboardHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildJudgeClient(cfg config.Config, logger zerolog.Logger) (judge.Client, error) {
	if cfg.JudgeProvider == "sandbox" {
		return sandbox.New(sandbox.Config{
			Host:          cfg.DockerHost,
			WorkspaceRoot: cfg.SandboxWorkspace,
			CPUShares:     int64(cfg.SandboxCPUShares),
			Logger:        logger,
		})
	}

	return judge.NewJudge0Client(judge.Judge0Config{
		BaseURL:      cfg.Judge0BaseURL,
		APIKey:       cfg.Judge0APIKey,
		APIHost:      cfg.Judge0APIHost,
		PollInterval: cfg.JudgePollInterval,
		MaxAttempts:  cfg.JudgeMaxAttempts,
		Logger:       logger,
	})
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
