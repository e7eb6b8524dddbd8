package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/metrics"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
	"github.com/likecodingloveproblems/matchticketselling/internal/service"
	"github.com/likecodingloveproblems/matchticketselling/internal/worker"
	"github.com/likecodingloveproblems/matchticketselling/pkg/config"
	"github.com/likecodingloveproblems/matchticketselling/pkg/database"
	"github.com/likecodingloveproblems/matchticketselling/pkg/logger"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
)

// Standalone expiry sweeper. Deploy one instance when the API serves
// from multiple replicas, so the sweep runs once per interval.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: "expiry-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting expiry worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "expiry-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Fatal(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer telemetry.Shutdown(ctx)

	if err := metrics.Init(); err != nil {
		appLog.Fatal(fmt.Sprintf("Metrics init failed: %v", err))
	}

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      10,
		MinConns:      2,
		LockTimeout:   cfg.Database.LockTimeout,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		EnableTracing: cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	var eventPublisher service.EventPublisher
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: "expiry-worker",
		ClientID:    cfg.Kafka.ClientID + "-expiry",
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		eventPublisher = service.NewNoOpEventPublisher()
	}
	defer eventPublisher.Close()

	store := repository.NewPostgresReservationStore(db.Pool())

	expiryWorker := worker.NewExpiryWorker(store, eventPublisher, &worker.ExpiryWorkerConfig{
		HoldTimeout:           cfg.Reservation.HoldTimeout,
		SweepInterval:         cfg.Reservation.SweepInterval,
		BatchSize:             cfg.Reservation.SweepBatchSize,
		DeleteEmptiedInvoices: cfg.Reservation.DeleteEmptiedInvoices,
	})
	if err := expiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Expiry worker failed to start: %v", err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down expiry worker...")
	expiryWorker.Stop()

	stats := expiryWorker.GetStats()
	appLog.Info(fmt.Sprintf("Expiry worker exited (invoices swept: %d, items expired: %d, seats released: %d)",
		stats.TotalInvoicesSwept, stats.TotalItemsExpired, stats.TotalSeatsReleased))
}
