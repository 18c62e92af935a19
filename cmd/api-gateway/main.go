package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/admissions-api/api/swagger"
	"github.com/noah-isme/admissions-api/internal/handler"
	"github.com/noah-isme/admissions-api/internal/middleware"
	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/repository"
	"github.com/noah-isme/admissions-api/internal/service"
	"github.com/noah-isme/admissions-api/pkg/cache"
	"github.com/noah-isme/admissions-api/pkg/config"
	"github.com/noah-isme/admissions-api/pkg/database"
	"github.com/noah-isme/admissions-api/pkg/events"
	"github.com/noah-isme/admissions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admissions-api/pkg/middleware/requestid"
)

// @title Admissions API
// @version 1.0.0
// @description Applicant pipeline from document review to official enrollment
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// redisPinger adapts a redis client to the readiness probe.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{"postgres": db}

	var redisClient *redis.Client
	if cfg.Summary.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			checks["redis"] = redisPinger{client: redisClient}
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc,
		cfg.Summary.CacheTTL,
		logr,
		cfg.Summary.CacheEnabled && redisClient != nil,
	)

	applicantRepo := repository.NewApplicantRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	examRepo := repository.NewExamScheduleRepository(db)
	interviewRepo := repository.NewInterviewScheduleRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	programRepo := repository.NewProgramRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	bus := events.NewBus(logr)
	defer bus.Close()

	notificationSvc := service.NewNotificationService(
		notificationRepo,
		userRepo,
		service.LogMailer{From: cfg.Mail.From, Logger: logr},
		metricsSvc,
		service.NotificationConfig{
			ProgramHeadRole: cfg.Admissions.ProgramHeadRole,
			MailWorkers:     cfg.Mail.Workers,
			MailRetries:     cfg.Mail.Retries,
			MailRetryDelay:  cfg.Mail.RetryDelay,
		},
		logr,
	)
	notificationSvc.Start(ctx)

	transitions := service.NewStatusTransitionService(applicantRepo, bus, cfg.Admissions.TransitionPolicy, logr)
	capacity := service.NewCapacityResolver(examRepo, interviewRepo)
	allocator := service.NewInterviewAllocator(capacity, interviewRepo, logr)
	gate := service.NewDocumentGate(
		applicantRepo,
		documentRepo,
		service.NewCategoryResolver(programRepo, logr),
		allocator,
		transitions,
		notificationSvc,
		metricsSvc,
		service.GateConfig{
			InterviewOnlyCategories: cfg.Admissions.InterviewOnlyCategories,
			ExamCategories:          cfg.Admissions.ExamCategories,
			RequiredDocuments:       cfg.Admissions.RequiredDocuments,
		},
		logr,
	)

	applicantSvc := service.NewApplicantService(applicantRepo, documentRepo, transitions, cacheSvc, cfg.Summary.CacheTTL, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, applicantRepo, gate, transitions, validate, logr)
	examSvc := service.NewExamScheduleService(
		examRepo,
		applicantRepo,
		interviewRepo,
		capacity,
		allocator,
		transitions,
		notificationSvc,
		metricsSvc,
		service.ExamConfig{
			DefaultTotalItems: cfg.Admissions.ExamDefaultTotalItems,
			PassingRatio:      cfg.Admissions.ExamPassingRatio,
		},
		validate,
		logr,
	)
	interviewSvc := service.NewInterviewScheduleService(
		interviewRepo,
		applicantRepo,
		programRepo,
		capacity,
		allocator,
		gate,
		transitions,
		metricsSvc,
		cfg.Admissions.DeclineReasonMaxLength,
		validate,
		logr,
	)
	materializer := service.NewEnrollmentMaterializer(
		programRepo,
		studentRepo,
		userRepo,
		applicantRepo,
		enrollmentRepo,
		service.CampusConfig{AlphaCode: cfg.Admissions.CampusAlphaCode, NumericCode: cfg.Admissions.CampusNumericCode},
		logr,
	)
	enrollmentSvc := service.NewEnrollmentService(applicantRepo, transitions, materializer, validate, logr)

	if err := service.RegisterPipelineSubscribers(bus, notificationSvc, metricsSvc, applicantSvc); err != nil {
		logr.Fatal("failed to register pipeline subscribers", zap.Error(err))
	}

	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}, logr)

	applicantHandler := handler.NewApplicantHandler(applicantSvc, documentSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	examHandler := handler.NewExamScheduleHandler(examSvc)
	interviewHandler := handler.NewInterviewScheduleHandler(interviewSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleProgramHead)
	registrar := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar)
	interviewers := middleware.RequireRoles(models.RoleAdmin, models.RoleProgramHead)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	api.GET("/admissions/summary", staff, applicantHandler.Summary)

	applicants := api.Group("/applicants")
	applicants.POST("", registrar, middleware.Audit(auditRepo, models.AuditActionApplicantCreate, "applicant"), applicantHandler.Create)
	applicants.GET("", staff, applicantHandler.List)
	applicants.GET("/:id", staff, applicantHandler.Get)
	applicants.GET("/:id/history", staff, applicantHandler.History)
	applicants.POST("/:id/decline", registrar, middleware.Audit(auditRepo, models.AuditActionApplicantDecline, "applicant"), applicantHandler.Decline)
	applicants.POST("/:id/reprocess", registrar, applicantHandler.Reprocess)
	applicants.GET("/:id/documents", staff, applicantHandler.ListDocuments)
	applicants.POST("/:id/documents", registrar, applicantHandler.CreateDocument)
	applicants.POST("/:id/enroll", registrar, middleware.Audit(auditRepo, models.AuditActionEnroll, "applicant"), enrollmentHandler.Enroll)

	documents := api.Group("/documents")
	documents.PATCH("/:id/status", registrar, middleware.Audit(auditRepo, models.AuditActionDocumentReview, "document"), documentHandler.UpdateStatus)
	documents.POST("/bulk-verify", registrar, middleware.Audit(auditRepo, models.AuditActionDocumentBulk, "document"), documentHandler.BulkVerify)

	exams := api.Group("/exam-schedules")
	exams.POST("", registrar, examHandler.Create)
	exams.PUT("/:id", registrar, examHandler.Update)
	exams.GET("/:id/capacity", staff, examHandler.Capacity)
	exams.POST("/:id/assign", registrar, middleware.Audit(auditRepo, models.AuditActionExamAssign, "exam_schedule"), examHandler.Assign)
	exams.POST("/:id/bulk-assign", registrar, middleware.Audit(auditRepo, models.AuditActionExamAssign, "exam_schedule"), examHandler.BulkAssign)
	api.PUT("/exam-assignments/:id/score", registrar, middleware.Audit(auditRepo, models.AuditActionExamScore, "exam_assignment"), examHandler.RecordScore)

	interviews := api.Group("/interview-schedules")
	interviews.POST("", interviewers, interviewHandler.Create)
	interviews.PUT("/:id", interviewers, interviewHandler.Update)
	interviews.GET("/:id/capacity", staff, interviewHandler.Capacity)
	interviews.POST("/:id/assign", staff, middleware.Audit(auditRepo, models.AuditActionInterviewAssign, "interview_schedule"), interviewHandler.Assign)
	interviews.POST("/process-queue", staff, interviewHandler.ProcessQueue)

	decisions := api.Group("/interview-assignments")
	decisions.POST("/:id/approve", interviewers, middleware.Audit(auditRepo, models.AuditActionInterviewDecision, "interview_assignment"), interviewHandler.Approve)
	decisions.POST("/:id/decline", interviewers, middleware.Audit(auditRepo, models.AuditActionInterviewDecision, "interview_assignment"), interviewHandler.Decline)

	api.POST("/enrollments/bulk", registrar, middleware.Audit(auditRepo, models.AuditActionEnroll, "enrollment"), enrollmentHandler.BulkEnroll)

	api.GET("/notifications", staff, notificationHandler.List)
	api.POST("/notifications/:id/read", staff, notificationHandler.MarkRead)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	notificationSvc.Stop()
}
