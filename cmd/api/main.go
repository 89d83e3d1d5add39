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

	_ "github.com/prepshare/claims-api/api/swagger"
	"github.com/prepshare/claims-api/internal/handler"
	"github.com/prepshare/claims-api/internal/middleware"
	"github.com/prepshare/claims-api/internal/models"
	"github.com/prepshare/claims-api/internal/repository"
	"github.com/prepshare/claims-api/internal/service"
	"github.com/prepshare/claims-api/pkg/cache"
	"github.com/prepshare/claims-api/pkg/config"
	"github.com/prepshare/claims-api/pkg/database"
	"github.com/prepshare/claims-api/pkg/logger"
	corsmiddleware "github.com/prepshare/claims-api/pkg/middleware/cors"
	reqidmiddleware "github.com/prepshare/claims-api/pkg/middleware/requestid"
	"github.com/prepshare/claims-api/pkg/storage"
)

// @title PrepShare Claims API
// @version 1.0.0
// @description Damage claim lifecycle service for kitchen and storage bookings
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
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	fileStore, err := storage.NewLocalStorage(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init evidence storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL)

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "claims-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	projector := service.NewClaimProjector(cfg.Claims.MinEvidenceCount)
	gateway := service.NewHTTPChargeGateway(cfg.Charges.GatewayURL, cfg.Charges.GatewayAPIKey, cfg.Charges.GatewayTimeout)
	chargeSvc := service.NewChargeService(claimRepo, historyRepo, gateway, cacheSvc, logr, metrics,
		cfg.Charges.WorkerConcurrency, cfg.Charges.WorkerRetries)

	claimSvc := service.NewClaimService(claimRepo, evidenceRepo, historyRepo, bookingRepo, chargeSvc,
		cacheSvc, projector, userRepo, validate, logr, metrics, service.ClaimServiceConfig{
			MinEvidenceCount:  cfg.Claims.MinEvidenceCount,
			MinAmountCents:    cfg.Claims.MinAmountCents,
			MaxAmountCents:    cfg.Claims.MaxAmountCents,
			BookingWindowDays: cfg.Claims.BookingWindowDays,
			ResponseWindow:    cfg.Claims.ChefResponseWindow,
		})
	evidenceSvc := service.NewEvidenceService(evidenceRepo, claimRepo, cacheSvc, fileStore, signer,
		userRepo, validate, logr, service.EvidenceServiceConfig{
			MaxFileSize:  cfg.Evidence.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Evidence.AllowedMIMEs,
			MaxPerClaim:  cfg.Evidence.MaxPerClaim,
			APIPrefix:    cfg.APIPrefix,
		})
	reviewSvc := service.NewReviewService(claimRepo, evidenceRepo, historyRepo, cacheSvc, projector,
		userRepo, validate, logr, metrics)
	exportSvc := service.NewExportService(claimRepo, evidenceRepo, historyRepo, fileStore, signer,
		service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)
	sweeper := service.NewSweeperService(claimRepo, historyRepo, exportSvc, cacheSvc, logr, metrics, service.SweeperConfig{
		Interval:        cfg.Sweeper.Interval,
		DraftExpiryDays: cfg.Claims.FilingWindowDays,
		SettleDelay:     cfg.Sweeper.SettleDelay,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	claimHandler := handler.NewClaimHandler(claimSvc)
	evidenceHandler := handler.NewEvidenceHandler(evidenceSvc)
	chefHandler := handler.NewChefHandler(reviewSvc)
	adminHandler := handler.NewAdminHandler(reviewSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
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
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users",
		middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleAdmin),
		middleware.Audit(userRepo, "user_admin", "users"))
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	manager := api.Group("/manager/damage-claims",
		middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleManager, models.RoleAdmin))
	{
		manager.GET("/recent-bookings", claimHandler.RecentBookings)
		manager.GET("", claimHandler.List)
		manager.POST("", claimHandler.Create)
		manager.GET("/export.csv", exportHandler.ClaimsCSV)
		manager.POST("/evidence-files", evidenceHandler.Upload)
		manager.GET("/:id", claimHandler.Get)
		manager.DELETE("/:id", claimHandler.Delete)
		manager.POST("/:id/submit", claimHandler.Submit)
		manager.POST("/:id/charge", claimHandler.Charge)
		manager.GET("/:id/history", claimHandler.History)
		manager.GET("/:id/statement.pdf", exportHandler.Statement)
		manager.POST("/:id/damaged-items", claimHandler.AddDamagedItem)
		manager.POST("/:id/evidence", evidenceHandler.Add)
		manager.DELETE("/:id/evidence/:evidenceId", evidenceHandler.Remove)
		manager.GET("/:id/evidence/:evidenceId/url", evidenceHandler.DownloadURL)
		manager.GET("/:id/evidence/:evidenceId/download", evidenceHandler.Download)
	}

	chef := api.Group("/chef/damage-claims",
		middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleChef))
	{
		chef.GET("/pending", chefHandler.Pending)
		chef.GET("/:id", claimHandler.Get)
		chef.GET("/:id/history", claimHandler.History)
		chef.POST("/:id/respond", chefHandler.Respond)
	}

	admin := api.Group("/admin/damage-claims",
		middleware.JWT(authSvc),
		middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/review-queue", adminHandler.ReviewQueue)
		admin.POST("/:id/decision", adminHandler.Decide)
	}

	api.GET("/exports/:token", exportHandler.Download)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chargeSvc.Start(rootCtx)
	defer chargeSvc.Stop()
	if cfg.Sweeper.Enabled {
		sweeper.Start(rootCtx)
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
