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
	"go.uber.org/zap"

	_ "github.com/scolaris-app/biblio-api/api/swagger"
	"github.com/scolaris-app/biblio-api/internal/handler"
	"github.com/scolaris-app/biblio-api/internal/middleware"
	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	"github.com/scolaris-app/biblio-api/internal/service"
	"github.com/scolaris-app/biblio-api/pkg/cache"
	"github.com/scolaris-app/biblio-api/pkg/config"
	"github.com/scolaris-app/biblio-api/pkg/database"
	"github.com/scolaris-app/biblio-api/pkg/jobs"
	"github.com/scolaris-app/biblio-api/pkg/logger"
	corsmiddleware "github.com/scolaris-app/biblio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/scolaris-app/biblio-api/pkg/middleware/requestid"
	"github.com/scolaris-app/biblio-api/pkg/storage"
)

// @title Biblio API
// @version 1.0.0
// @description School library loan and return service
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled")
			cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
		}
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	bookRepo := repository.NewBookRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	penaltyRepo := repository.NewPenaltyRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	borrowerRepo := repository.NewBorrowerRepository(db)
	smsRepo := repository.NewSMSRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "biblio-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	catalogSvc := service.NewCatalogService(bookRepo, validate, logr)
	policySvc := service.NewPolicyService(settingsRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, metricsSvc, cfg.Dashboard.CacheTTL, logr)
	loanSvc := service.NewLoanService(loanRepo, borrowerRepo, policySvc, dashboardSvc, validate, logr)
	penaltySvc := service.NewPenaltyService(penaltyRepo, dashboardSvc, logr)
	notificationSvc := service.NewNotificationService(smsRepo, loanRepo, service.NewLogGateway(logr), logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})
	reservationSvc := service.NewReservationService(reservationRepo, bookRepo, borrowerRepo, policySvc, notificationSvc, validate, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(loanRepo, penaltyRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.ResultTTL,
	}, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	bookHandler := handler.NewBookHandler(catalogSvc)
	loanHandler := handler.NewLoanHandler(loanSvc, metricsSvc)
	reservationHandler := handler.NewReservationHandler(reservationSvc)
	penaltyHandler := handler.NewPenaltyHandler(penaltySvc)
	policyHandler := handler.NewPolicyHandler(policySvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
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
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authSecured := auth.Group("", middleware.JWT(authSvc))
	authSecured.POST("/logout", authHandler.Logout)
	authSecured.POST("/change-password", authHandler.ChangePassword)
	authSecured.GET("/me", authHandler.Me)

	// Signed token does the authorization for downloads.
	api.GET("/exports/download/:token", exportHandler.Download)

	secured := api.Group("", middleware.JWT(authSvc))

	staffRoles := middleware.RequireRoles(models.RoleLibrarian, models.RoleAdmin, models.RoleSuperAdmin)
	adminRoles := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	books := secured.Group("/books")
	books.GET("", bookHandler.List)
	books.GET("/:id", bookHandler.Get)
	books.POST("", staffRoles, bookHandler.Create)
	books.PUT("/:id", staffRoles, bookHandler.Update)

	loans := secured.Group("/loans", staffRoles)
	loans.GET("", loanHandler.List)
	loans.GET("/:id", loanHandler.Get)
	loans.POST("", middleware.Audit(userRepo, models.AuditActionLoanCreate, "loans"), loanHandler.Borrow)
	loans.POST("/:id/return", middleware.Audit(userRepo, models.AuditActionLoanReturn, "loans"), loanHandler.Return)
	loans.POST("/:id/extend", middleware.Audit(userRepo, models.AuditActionLoanExtend, "loans"), loanHandler.Extend)
	loans.POST("/:id/lost", middleware.Audit(userRepo, models.AuditActionLoanMarkLost, "loans"), loanHandler.MarkLost)

	reservations := secured.Group("/reservations", staffRoles)
	reservations.GET("", reservationHandler.List)
	reservations.GET("/:id", reservationHandler.Get)
	reservations.POST("", reservationHandler.Create)
	reservations.DELETE("/:id", reservationHandler.Cancel)

	penalties := secured.Group("/penalties", staffRoles)
	penalties.GET("", penaltyHandler.List)
	penalties.GET("/:id", penaltyHandler.Get)
	penalties.POST("/:id/pay", middleware.Audit(userRepo, models.AuditActionPenaltyPay, "penalties"), penaltyHandler.MarkPaid)
	penalties.GET("/outstanding/:kind/:id", penaltyHandler.Outstanding)

	secured.GET("/policy", staffRoles, policyHandler.Get)
	secured.PUT("/policy", adminRoles, policyHandler.Update)

	secured.GET("/dashboard", staffRoles, dashboardHandler.Summary)
	secured.GET("/system/metrics", adminRoles, metricsHandler.System)

	secured.POST("/exports/:report", staffRoles, exportHandler.Generate)

	notifications := secured.Group("/notifications", staffRoles)
	notifications.GET("/outbox", notificationHandler.Outbox)
	notifications.POST("/overdue-reminders", notificationHandler.SendOverdueReminders)

	users := secured.Group("/users", adminRoles)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", userHandler.Create)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}
	go runSweeps(ctx, cfg, logr, reservationSvc, notificationSvc, exportSvc)

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
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// runSweeps drives the periodic maintenance loops: reservation expiry, overdue
// SMS reminders and stale export cleanup.
func runSweeps(ctx context.Context, cfg *config.Config, logr *zap.Logger, reservations *service.ReservationService, notifications *service.NotificationService, exports *service.ExportService) {
	reservationTicker := time.NewTicker(cfg.Sweep.ReservationInterval)
	reminderTicker := time.NewTicker(cfg.Sweep.OverdueReminderInterval)
	cleanupTicker := time.NewTicker(cfg.Exports.CleanupInterval)
	defer reservationTicker.Stop()
	defer reminderTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reservationTicker.C:
			expired, err := reservations.ExpireDue(ctx)
			if err != nil {
				logr.Sugar().Warnw("reservation expiry sweep failed", "error", err)
			} else if expired > 0 {
				logr.Sugar().Infow("reservations expired", "count", expired)
			}
		case <-reminderTicker.C:
			if !cfg.Notifications.Enabled {
				continue
			}
			queued, err := notifications.QueueOverdueReminders(ctx)
			if err != nil {
				logr.Sugar().Warnw("overdue reminder sweep failed", "error", err)
			} else if queued > 0 {
				logr.Sugar().Infow("overdue reminders queued", "count", queued)
			}
		case <-cleanupTicker.C:
			removed, err := exports.Cleanup()
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
			} else if len(removed) > 0 {
				logr.Sugar().Infow("stale exports removed", "count", len(removed))
			}
		}
	}
}
