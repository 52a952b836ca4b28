package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minutehq/usagewatch/internal/api/handlers"
	"github.com/minutehq/usagewatch/internal/api/router"
	"github.com/minutehq/usagewatch/internal/config"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/notifier"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/validator"
	"github.com/minutehq/usagewatch/internal/repository/postgres"
	"github.com/minutehq/usagewatch/internal/services"
	"github.com/minutehq/usagewatch/internal/worker"
	"github.com/minutehq/usagewatch/migrations"
)

// flushTick bounds how late a closed batch window can go out.
const flushTick = 30 * time.Second

// @title UsageWatch API
// @version 1.0
// @description Usage anomaly detection and alerting for meeting transcription tenants
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, migrations.GetFS()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Database migrations applied")

	// Repositories
	orgRepo := postgres.NewOrgRepository(db)
	usageRepo := postgres.NewUsageRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)

	// Services
	alertService := services.NewAlertService(alertRepo, log)
	baselineService := services.NewBaselineService(usageRepo, log)
	detector := services.NewDetectorService(log)

	senders := []notification.Sender{
		notifier.NewEmailSender(cfg.Channels.Email, log),
		notifier.NewChatWebhookSender(cfg.Channels.ChatWebhook, log),
		notifier.NewWebhookSender(cfg.Channels.GenericWebhook, log),
	}
	notificationService := services.NewNotificationService(
		policyRepo,
		alertService,
		senders,
		cfg.Notification.ChannelTimeout,
		cfg.Notification.DigestTopN,
		log,
	)

	ctx := context.Background()
	defaults := notification.DefaultPolicies(cfg.Notification.HighBatchWindow, cfg.Notification.MediumBatchWindow)
	if cfg.Notification.PolicySeedPath != "" {
		defaults, err = notification.LoadPolicySeed(cfg.Notification.PolicySeedPath)
		if err != nil {
			log.Fatalf("Failed to load policy seed: %v", err)
		}
	}
	if err := notificationService.EnsurePolicies(ctx, defaults); err != nil {
		log.Fatalf("Failed to seed notification policies: %v", err)
	}

	engine := services.NewEngineService(
		orgRepo,
		usageRepo,
		baselineService,
		detector,
		alertService,
		notificationService,
		cfg.Detection.LookbackDays,
		int(cfg.Detection.WorkerPoolSize),
		log,
	)

	// Background workers
	scheduler := worker.NewScheduler(engine, cfg.Detection.Schedule, cfg.Detection.RunOnStart, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start detection scheduler: %v", err)
	}

	batcherCtx, stopBatcher := context.WithCancel(context.Background())
	batcher := worker.NewBatcher(notificationService, flushTick, log)
	batcherDone := make(chan struct{})
	go func() {
		batcher.Start(batcherCtx)
		close(batcherDone)
	}()

	// HTTP server
	val := validator.New()
	handler := router.New(cfg, log, &router.Handlers{
		Health:    handlers.NewHealthHandler(db.DB, log),
		Detection: handlers.NewDetectionHandler(engine, log, val),
		Alert:     handlers.NewAlertHandler(alertService, log, val),
		Policy:    handlers.NewPolicyHandler(notificationService, log, val),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
		}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	// Stop producing new alerts, finish in-flight requests, then drain the
	// notification queues so batched digests are not lost.
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Server forced to shut down")
	}

	stopBatcher()
	<-batcherDone

	log.Info("Server stopped")
}
