package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/epa-eval-api/api/swagger"
	"github.com/noah-isme/epa-eval-api/internal/handler"
	"github.com/noah-isme/epa-eval-api/internal/middleware"
	"github.com/noah-isme/epa-eval-api/internal/models"
	"github.com/noah-isme/epa-eval-api/internal/repository"
	"github.com/noah-isme/epa-eval-api/internal/service"
	"github.com/noah-isme/epa-eval-api/pkg/cache"
	"github.com/noah-isme/epa-eval-api/pkg/config"
	"github.com/noah-isme/epa-eval-api/pkg/database"
	"github.com/noah-isme/epa-eval-api/pkg/jobs"
	"github.com/noah-isme/epa-eval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/epa-eval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/epa-eval-api/pkg/middleware/requestid"
	"github.com/noah-isme/epa-eval-api/pkg/storage"
)

// @title EPA Evaluation API
// @version 1.0.0
// @description Clinical competency tracking for Entrustable Professional Activities
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	userRepo := repository.NewUserRepository(db)
	epaRepo := repository.NewEpaRepository(db)
	evalRepo := repository.NewEvaluationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	noteRepo := repository.NewNoteRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	scoreSvc := service.NewScoreService(epaRepo, cacheSvc, metrics, logr, cfg.Dashboard.CacheTTL)
	progressSvc := service.NewProgressService(epaRepo, logr)
	analysisSvc := service.NewAnalysisService()
	recommendationSvc := service.NewRecommendationService(scoreSvc, logr)
	achievementSvc := service.NewAchievementService(service.AchievementServiceParams{
		Scores:       scoreSvc,
		Logger:       logr,
		MasteryRatio: cfg.Achievements.MasteryRatio,
		RecentRatio:  cfg.Achievements.RecentRatio,
		RecentWindow: cfg.Achievements.RecentWindow,
	})
	evaluationSvc := service.NewEvaluationService(service.EvaluationServiceParams{
		Evaluations: evalRepo,
		Epas:        epaRepo,
		Students:    studentRepo,
		Audits:      userRepo,
		Scores:      scoreSvc,
		Validator:   validate,
		Logger:      logr,
	})
	studentSvc := service.NewStudentService(studentRepo, noteRepo, validate, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(handler.StudentHandlerParams{
		Students:        studentSvc,
		Scores:          scoreSvc,
		Progress:        progressSvc,
		Analysis:        analysisSvc,
		Recommendations: recommendationSvc,
		Achievements:    achievementSvc,
	})
	supervisorHandler := handler.NewSupervisorHandler(studentSvc, evaluationSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		protected := auth.Group("")
		protected.Use(middleware.JWT(authSvc))
		protected.POST("/logout", authHandler.Logout)
		protected.POST("/change-password", authHandler.ChangePassword)
		protected.GET("/me", authHandler.Me)
	}

	student := api.Group("/student")
	student.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		student.GET("/results", studentHandler.Results)
		student.GET("/results/detailed", studentHandler.DetailedResults)
		student.GET("/progress", studentHandler.Progress)
		student.GET("/recommendations", studentHandler.Recommendations)
		student.GET("/achievements", studentHandler.Achievements)
	}

	supervisor := api.Group("/supervisor")
	supervisor.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleSupervisor, models.RoleAdmin))
	{
		supervisor.GET("/students", supervisorHandler.Students)
		supervisor.GET("/students/:studentId/evaluations", supervisorHandler.StudentEvaluations)
		supervisor.GET("/students/:studentId/overview", supervisorHandler.Overview)
		supervisor.GET("/students/:studentId/notes", supervisorHandler.Notes)
		supervisor.POST("/evaluations", supervisorHandler.Submit)
		supervisor.POST("/notes", supervisorHandler.AddNote)
	}

	ops := api.Group("/ops")
	ops.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		ops.GET("/metrics", metricsHandler.Snapshot)
	}

	if cfg.Reports.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportRepo := repository.NewReportRepository(db)
		exportSvc := service.NewExportService(service.ExportServiceParams{
			Scores:   scoreSvc,
			Overview: evaluationSvc,
			Students: studentRepo,
			Storage:  localStorage,
			Signer:   signer,
			Logger:   logr,
			Config: service.ExportConfig{
				APIPrefix: cfg.APIPrefix,
				ResultTTL: cfg.Reports.SignedURLTTL,
			},
		})
		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(rootCtx)
		defer queue.Stop()

		reportSvc := service.NewReportService(reportRepo, studentSvc, queue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: time.Hour,
		})
		reportSvc.RecoverPendingJobs(rootCtx)
		reportSvc.StartCleanup(rootCtx)

		reportHandler := handler.NewReportHandler(reportSvc)
		reports := api.Group("/reports")
		{
			reports.GET("/download/:token", reportHandler.Download)

			protected := reports.Group("")
			protected.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleSupervisor, models.RoleAdmin))
			protected.POST("/generate", reportHandler.Generate)
			protected.GET("/status/:id", reportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
