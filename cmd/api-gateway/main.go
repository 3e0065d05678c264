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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// @title Timetable Gateway API
// @version 1.0.0
// @description Schedule views, workload and conflict reports, and exports over the timetable backend.
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

	metrics := service.NewMetricsService()
	validate := validator.New()
	probes := map[string]service.Pinger{}

	var (
		source    service.TimetableSource
		generator service.ScheduleGenerator
		remote    service.RemoteConflictSource
		reports   service.ReportSource
	)
	if cfg.Upstream.BaseURL != "" {
		api := repository.NewTimetableAPI(cfg.Upstream.BaseURL, nil, cfg.Upstream.Timeout, logr)
		source, generator, remote, reports = api, api, api, api
		probes["upstream"] = api
	}
	if cfg.Upstream.Source == config.SourcePostgres {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		dbSource := repository.NewTimetableDBSource(db)
		source = dbSource
		probes["postgres"] = dbSource
	}
	if source == nil {
		logr.Fatal("no timetable source configured", zap.String("source", cfg.Upstream.Source))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Views.RedisStateOn {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		probes["redis"] = cache.Probe{Client: redisClient}
	}

	var cacheRepo service.CacheRepository
	if redisClient != nil && cfg.Cache.Enabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	var viewStore service.ViewStateStore = service.NewMemoryViewStateStore()
	if redisClient != nil && cfg.Views.RedisStateOn {
		viewStore = repository.NewViewStateRepository(redisClient, cfg.Views.StateTTL)
	}

	authService := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiry,
		Issuer:            cfg.JWT.Issuer,
	})
	viewService := service.NewViewService(source, viewStore, metrics, logr, service.ViewServiceConfig{
		PageSize:     cfg.Views.PageSize,
		MaxSessions:  cfg.Views.MaxSessions,
		FetchTimeout: cfg.Views.FetchTimeout,
	})
	workloadService := service.NewWorkloadService(source, cacheService, metrics, validate, logr, service.WorkloadServiceConfig{
		DefaultMode: timetable.TotalMode(cfg.Workload.TotalMode),
		ChunkSize:   cfg.Workload.ChunkSize,
		CacheTTL:    cfg.Cache.TTL,
	})
	conflictService := service.NewConflictService(source, remote, cacheService, metrics, validate, logr, cfg.Cache.TTL)
	generationService := service.NewGenerationService(generator, conflictService, validate, logr)
	dashboardService := service.NewDashboardService(source, metrics, logr)

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		probes["storage"] = files

		var jobStore service.ExportJobStore = service.NewMemoryExportJobStore()
		if redisClient != nil {
			jobStore = repository.NewExportJobRepository(redisClient, cfg.Exports.ResultTTL)
		}

		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exporter := service.NewExportService(reports, source, workloadService, conflictService, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.ResultTTL,
		}, logr, export.NewCSVExporter(export.WithBOM()), export.NewPDFExporter(cfg.Exports.PDFFontPath), export.NewXLSXExporter())

		worker := service.NewExportWorker(jobStore, exporter, metrics, cfg.Exports.WorkerRetries, logr)
		queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		exportJobs := service.NewExportJobService(jobStore, queue, exporter, validate, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.ResultTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		exportJobs.RecoverPendingJobs(ctx)
		exportJobs.StartCleanup(ctx)
		exportHandler = handler.NewExportHandler(exportJobs)
	}

	healthService := service.NewHealthService(probes, cfg.Health.ProbeTimeout, metrics)

	metricsHandler := handler.NewMetricsHandler(metrics, healthService)
	viewHandler := handler.NewViewHandler(viewService, validate)
	reportHandler := handler.NewReportHandler(workloadService, conflictService)
	generatorHandler := handler.NewScheduleGeneratorHandler(generationService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if exportHandler != nil {
		api.GET("/exports/download", exportHandler.Download)
	}

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authService))

	views := secured.Group("/views")
	views.POST("", viewHandler.Create)
	views.GET("/:id", viewHandler.Get)
	views.DELETE("/:id", viewHandler.Delete)
	views.POST("/:id/refresh", viewHandler.Refresh)
	views.POST("/:id/retry", viewHandler.Retry)
	views.GET("/:id/entries", viewHandler.Entries)
	views.GET("/:id/grid", viewHandler.Grid)
	views.GET("/:id/conflicts", viewHandler.Conflicts)

	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)

	reportsGroup := secured.Group("/reports")
	reportsGroup.GET("/workload", staff, reportHandler.Workload)
	reportsGroup.GET("/workload/charts", staff, reportHandler.WorkloadCharts)
	reportsGroup.GET("/conflicts", adminOnly, reportHandler.Conflicts)

	secured.POST("/schedules/generate", adminOnly, internalmiddleware.Audit(logr, "schedule.generate"), generatorHandler.Generate)
	secured.GET("/dashboard", adminOnly, dashboardHandler.Summary)

	if exportHandler != nil {
		secured.POST("/exports", internalmiddleware.Audit(logr, "export.create"), exportHandler.Create)
		secured.GET("/exports/:id", exportHandler.Status)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Warn("http shutdown error", zap.Error(err))
		}
	}()

	logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "source", cfg.Upstream.Source)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Info("server stopped")
}
