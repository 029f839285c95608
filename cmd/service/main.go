package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birthday_notification_service/internal/app"
	"birthday_notification_service/internal/domain/delivery"
	"birthday_notification_service/internal/domain/trigger"
	"birthday_notification_service/internal/infra/config"
	idb "birthday_notification_service/internal/infra/database"
	"birthday_notification_service/internal/infra/httpserver"
	"birthday_notification_service/internal/infra/locker"
	"birthday_notification_service/internal/infra/logger"
	"birthday_notification_service/internal/infra/metrics"
	"birthday_notification_service/internal/infra/notifier"
	iqueue "birthday_notification_service/internal/infra/queue"
	"birthday_notification_service/internal/infra/scheduler"

	"github.com/jonboulle/clockwork"
)

const version = "1.0.0"

func main() {
	fmt.Println("Birthday Notification Service starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	log := logger.WithComponent("main")
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	metrics.Init(version)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Initialize Redis (lock store)
	redisClient, err := locker.NewClient(startupCtx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Redis connection established successfully.")

	// Initialize NATS JetStream (durable queue)
	nc, js, err := iqueue.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatalf("Could not connect to NATS: %v", err)
	}
	defer nc.Close()
	greetingsQueue, err := iqueue.NewJetStreamQueue(startupCtx, js)
	if err != nil {
		log.Fatalf("Could not set up greetings queue: %v", err)
	}
	log.Info("Greetings queue ready.")

	// Initialize Repositories and adapters
	recipientRepo := idb.NewPostgresRecipientRepository(db)
	deliveryRepo := idb.NewPostgresDeliveryRepository(db)
	redisLocker := locker.NewRedisLocker(redisClient)
	httpNotifier := notifier.NewHTTPNotifier(cfg.NotifierURL, cfg.NotifierTimeout)
	clock := clockwork.NewRealClock()

	// Initialize application services
	scanSvc := app.NewScanServiceImpl(
		recipientRepo, deliveryRepo, greetingsQueue, redisLocker, clock,
		logger.WithComponent("scan"),
		trigger.Target{Hour: cfg.NotifyHour, Minute: cfg.NotifyMinute},
		cfg.ScanLockTTL, cfg.CreateLockTTL,
	)
	dispatchSvc := app.NewDispatchServiceImpl(
		deliveryRepo, greetingsQueue, httpNotifier, redisLocker, clock,
		logger.WithComponent("dispatch"),
		cfg.MaxAttempts, delivery.BackoffSchedule(cfg.BackoffSchedule), cfg.RecordLockTTL,
		cfg.WorkerCount, cfg.FetchBatch,
	)
	reconcileSvc := app.NewReconcileServiceImpl(
		deliveryRepo, greetingsQueue, redisLocker, clock,
		logger.WithComponent("reconcile"),
		cfg.MaxAttempts, cfg.ReconcileLockTTL,
	)

	// Initialize the scheduler for the periodic jobs
	pipelineScheduler := scheduler.NewPipelineScheduler(
		scanSvc, reconcileSvc,
		logger.WithComponent("scheduler"),
		cfg.CronSpecScan, cfg.CronSpecReconcile,
	)
	pipelineScheduler.Start()

	// Start the dispatch workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		dispatchSvc.Run(workerCtx)
		close(workersDone)
	}()

	// Operational HTTP surface (health and metrics)
	srv := httpserver.New(cfg.HTTPPort, db, redisClient, nc, logger.WithComponent("http"))
	srv.Start()

	log.Info("Application setup complete. Pipeline is running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	pipelineScheduler.Stop()
	stopWorkers()
	<-workersDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}
	log.Info("Application shut down gracefully.")
}
