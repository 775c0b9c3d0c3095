package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/fyp-grading-api/api/swagger"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
	"github.com/noah-isme/fyp-grading-api/internal/handler"
	"github.com/noah-isme/fyp-grading-api/internal/repository"
	"github.com/noah-isme/fyp-grading-api/internal/service"
	"github.com/noah-isme/fyp-grading-api/pkg/cache"
	"github.com/noah-isme/fyp-grading-api/pkg/config"
	"github.com/noah-isme/fyp-grading-api/pkg/database"
	"github.com/noah-isme/fyp-grading-api/pkg/export"
	"github.com/noah-isme/fyp-grading-api/pkg/jobs"
	"github.com/noah-isme/fyp-grading-api/pkg/logger"
	"github.com/noah-isme/fyp-grading-api/pkg/storage"
	"github.com/noah-isme/fyp-grading-api/pkg/validation"
)

// @title FYP Grading API
// @version 1.0.0
// @description Role-weighted grading of final-year projects
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Grading.CacheEnabled {
		redisClient, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, result caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}
	var cacheRepo service.CacheRepository
	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Grading.CacheTTL, logr, redisClient != nil)

	validate := validation.New()

	users := repository.NewUserRepository(db)
	audit := repository.NewAuditRepository(db)
	semesters := repository.NewSemesterRepository(db)
	components := repository.NewAssessmentComponentRepository(db)
	weightages := repository.NewRoleWeightageRepository(db)
	grades := repository.NewRawGradeRepository(db)
	assignments := repository.NewProjectAssignmentRepository(db)
	reportJobs := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	weightageSvc := service.NewRoleWeightageService(weightages, cacheSvc, audit, validate, logr, service.RoleWeightageServiceConfig{
		Default: grading.RoleWeightage{
			Supervisor: cfg.Grading.DefaultSupervisorWeight,
			Moderator:  cfg.Grading.DefaultModeratorWeight,
		},
	})
	componentSvc := service.NewAssessmentComponentService(components, semesters, cacheSvc, audit, validate, logr)
	gradeSvc := service.NewGradeEntryService(grades, components, semesters, assignments, cacheSvc, metrics, audit, validate, logr)
	resultSvc := service.NewResultService(service.ResultServiceParams{
		Weightage:  weightageSvc,
		Semesters:  semesters,
		Components: components,
		Students:   assignments,
		Grades:     grades,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Logger:     logr,
		Config: service.ResultServiceConfig{
			PassThreshold:  cfg.Grading.PassThreshold,
			Workers:        cfg.Grading.ResultWorkers,
			CacheTTL:       cfg.Grading.CacheTTL,
			ComputeTimeout: cfg.Grading.ComputeTimeout,
		},
	})
	statisticsSvc := service.NewStatisticsService(resultSvc, cacheSvc, validate, logr, service.StatisticsServiceConfig{
		HistogramBins:  cfg.Grading.HistogramBins,
		ZeroAsUngraded: cfg.Grading.ZeroAsUngraded,
		CacheTTL:       cfg.Grading.CacheTTL,
	})

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		reportHandler, err = startReports(ctx, cfg, logr, resultSvc, reportJobs, semesters, audit, metrics, validate)
		if err != nil {
			logr.Fatal("failed to start report workers", zap.Error(err))
		}
	}

	handlers := routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		weightage:  handler.NewRoleWeightageHandler(weightageSvc),
		components: handler.NewAssessmentComponentHandler(componentSvc),
		grades:     handler.NewGradeHandler(gradeSvc),
		results:    handler.NewResultHandler(resultSvc, statisticsSvc),
		reports:    reportHandler,
		audit:      handler.NewAuditHandler(service.NewAuditTrailService(audit, validate, logr)),
		metrics:    handler.NewMetricsHandler(metrics, checks),
	}
	router := newRouter(cfg, logr, authSvc, metrics, audit, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func startReports(
	ctx context.Context,
	cfg *config.Config,
	logr *zap.Logger,
	results *service.ResultService,
	reportJobs *repository.ReportRepository,
	semesters *repository.SemesterRepository,
	audit *repository.AuditRepository,
	metrics *service.MetricsService,
	validate *validator.Validate,
) (*handler.ReportHandler, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(results, store, signer, service.ExportConfig{
		APIPrefix:      cfg.APIPrefix,
		ResultTTL:      cfg.Reports.SignedURLTTL,
		ZeroAsUngraded: cfg.Grading.ZeroAsUngraded,
		HistogramBins:  cfg.Grading.HistogramBins,
	}, logr, &export.CSVExporter{BOM: cfg.Reports.CSVByteOrderMark}, export.NewPDFExporter())

	worker := service.NewReportWorker(reportJobs, exportSvc, metrics, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("grade-reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	metrics.RegisterQueue("grade-reports", queue.Stats)
	queue.Start(ctx)
	go func() {
		<-ctx.Done()
		queue.Stop()
	}()

	reportSvc := service.NewReportService(reportJobs, semesters, queue, exportSvc, audit, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)
	return handler.NewReportHandler(reportSvc), nil
}
