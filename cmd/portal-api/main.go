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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/innovation-cell/research-portal-api/api/swagger"
	"github.com/innovation-cell/research-portal-api/internal/handler"
	"github.com/innovation-cell/research-portal-api/internal/middleware"
	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/internal/policy"
	"github.com/innovation-cell/research-portal-api/internal/repository"
	"github.com/innovation-cell/research-portal-api/internal/service"
	"github.com/innovation-cell/research-portal-api/pkg/cache"
	"github.com/innovation-cell/research-portal-api/pkg/config"
	"github.com/innovation-cell/research-portal-api/pkg/database"
	"github.com/innovation-cell/research-portal-api/pkg/jobs"
	"github.com/innovation-cell/research-portal-api/pkg/logger"
	corsmiddleware "github.com/innovation-cell/research-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/innovation-cell/research-portal-api/pkg/middleware/requestid"
)

// @title Research Portal API
// @version 0.1.0
// @description Review and approval workflow for papers and projects
// @BasePath /
// @schemes http

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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalogue cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	revisionRepo := repository.NewRevisionRepository(db)

	auditSink := service.NewAsyncAuditSink(userRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	})
	auditSink.Start(ctx)
	defer auditSink.Stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, auditSink, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	var cacheRepo *repository.CacheRepository
	if cfg.Catalogue.Enabled && redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	submissionSvc := service.NewSubmissionService(submissionRepo, userRepo, cacheRepo, cfg.Catalogue.CacheTTL, auditSink, metricsSvc, logr)
	reviewSvc := service.NewReviewService(submissionRepo, userRepo, auditSink, metricsSvc, logr)
	revisionSvc := service.NewRevisionService(submissionRepo, revisionRepo, auditSink, logr)
	publicationSvc := service.NewPublicationService(submissionRepo, submissionSvc, auditSink, metricsSvc, logr)
	userSvc := service.NewUserService(userRepo, auditSink, logr)
	reportSvc := service.NewReportService(submissionRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, validate)
	reviewHandler := handler.NewReviewHandler(reviewSvc, revisionSvc, publicationSvc, validate)
	userHandler := handler.NewUserHandler(userSvc, validate)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.OptionalJWT(authSvc))
	r.Use(middleware.Guard(policy.Default()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/api/papers/published", submissionHandler.Published)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authProtected := auth.Group("", middleware.JWT(authSvc))
	authProtected.POST("/logout", authHandler.Logout)
	authProtected.POST("/change-password", authHandler.ChangePassword)
	authProtected.GET("/me", authHandler.Me)

	protected := api.Group("", middleware.JWT(authSvc))

	papers := protected.Group("/papers")
	papers.POST("", submissionHandler.Create(models.KindPaper))
	papers.GET("", submissionHandler.List(models.KindPaper))
	papers.GET("/:id", submissionHandler.Get)

	projects := protected.Group("/projects")
	projects.POST("", submissionHandler.Create(models.KindProject))
	projects.GET("", submissionHandler.List(models.KindProject))
	projects.GET("/:id", submissionHandler.Get)

	submissions := protected.Group("/submissions")
	submissions.POST("/:id/revision", reviewHandler.SubmitRevision)
	submissions.GET("/:id/revisions", reviewHandler.RevisionHistory)

	review := protected.Group("/review", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin))
	review.GET("/queue", submissionHandler.AssignedQueue)
	review.POST("/:id/assign", reviewHandler.AssignReviewer)
	review.POST("/:id/decision", reviewHandler.Decide)
	review.POST("/:id/request-updates", reviewHandler.RequestUpdates)

	admin := protected.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.DELETE("/submissions", submissionHandler.DeleteMany)
	admin.POST("/submissions/publish", reviewHandler.BulkPublish)
	admin.POST("/submissions/:id/action", reviewHandler.AdminAction)

	users := protected.Group("/users")
	users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)
	users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Deactivate)

	if cfg.Reports.Enabled {
		reports := protected.Group("/reports", middleware.RequireRoles(models.RoleAdmin))
		reports.Use(middleware.Audit(auditSink, models.AuditActionReportExport, "report"))
		reports.GET("/published", reportHandler.PublishedWorks)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
