package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bursary-management-api/config"
	"bursary-management-api/controllers"
	"bursary-management-api/metrics"
	"bursary-management-api/middleware"
	"bursary-management-api/repository"
	"bursary-management-api/routes"
	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	logger, logFile := config.InitLogging(cfg.Database.Env)
	if logFile != nil {
		defer logFile.Close()
	}

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		logger.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Fatalf("❌ Failed to migrate database: %v", err)
	}
	store := repository.NewGormStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := services.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("❌ Failed to initialise %s blob store: %v", cfg.Storage.Backend, err)
	}

	mailer := config.NewMailer(cfg.Mail)
	if !mailer.Configured() {
		logger.Warn("SMTP not configured; applicant notifications will be recorded as failed")
	}
	notifier := services.NewEmailNotifier(mailer, cfg.Mail.OfficeName, cfg.Mail.ContactEmail, cfg.Engine.EditWindow)
	dispatcher := services.NewDispatcher(notifier, store, logger, cfg.Engine.NotifyWorkers, cfg.Engine.NotifyQueueSize)

	deadlines := services.NewDeadlineService(store, cfg.Engine.DeadlineCacheTTL, time.Now)
	duplicates := services.NewDuplicateDetector(store, cfg.Engine.DuplicateLookback, time.Now, logger)
	applications := services.NewApplicationService(store, cfg.Engine, services.ApplicationServiceOptions{
		Deadlines:     deadlines,
		Duplicates:    duplicates,
		Notifications: dispatcher,
		Blobs:         blobs,
		MaxUploadSize: cfg.Storage.MaxFileSize,
		Logger:        logger,
	})
	auth := services.NewAuthService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	var scheduler *cron.Cron
	if cfg.Jobs.OrphanCleanupSchedule != "" {
		scheduler, err = services.StartOrphanCleanup(services.NewOrphanCleaner(store, blobs, logger), cfg.Jobs.OrphanCleanupSchedule)
		if err != nil {
			logger.Fatalf("❌ %v", err)
		}
	}

	// Set Gin mode
	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter
	gin.DefaultErrorWriter = config.LogWriter

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.MaxMultipartMemory = 8 << 20

	handlers := &controllers.Handlers{
		Applications: applications,
		Deadlines:    deadlines,
		Duplicates:   duplicates,
		Auth:         auth,
		Logger:       logger,
		Ping: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	}
	routes.SetupRoutes(router, handlers, middleware.NewRateLimiter(cfg.Server.PublicRateLimit, cfg.Server.PublicBurst))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("🚀 Server starting on port %s (db=%s, storage=%s)", cfg.Server.Port, cfg.Database.Driver, cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("notification queue not drained")
	}
}
