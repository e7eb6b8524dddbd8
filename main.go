package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/likecodingloveproblems/matchticketselling/internal/di"
	"github.com/likecodingloveproblems/matchticketselling/internal/metrics"
	"github.com/likecodingloveproblems/matchticketselling/internal/middleware"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
	"github.com/likecodingloveproblems/matchticketselling/internal/service"
	"github.com/likecodingloveproblems/matchticketselling/internal/worker"
	"github.com/likecodingloveproblems/matchticketselling/migrations"
	"github.com/likecodingloveproblems/matchticketselling/pkg/config"
	"github.com/likecodingloveproblems/matchticketselling/pkg/database"
	"github.com/likecodingloveproblems/matchticketselling/pkg/logger"
	pkgmiddleware "github.com/likecodingloveproblems/matchticketselling/pkg/middleware"
	pkgredis "github.com/likecodingloveproblems/matchticketselling/pkg/redis"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting ticket service...")

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
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
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		LockTimeout:     cfg.Database.LockTimeout,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", cfg.Database.MinConns, cfg.Database.MaxConns))

	if err := migrations.Apply(ctx, db.Pool()); err != nil {
		appLog.Fatal(fmt.Sprintf("Migrations failed: %v", err))
	}
	appLog.Info("Migrations applied")

	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info("Redis connected")

	var eventPublisher service.EventPublisher
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		eventPublisher = service.NewNoOpEventPublisher()
	} else {
		appLog.Info("Kafka event publisher connected")
	}
	defer eventPublisher.Close()

	matchRepo := repository.NewPostgresMatchRepository(db.Pool())
	store := repository.NewPostgresReservationStore(db.Pool())

	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		MatchRepo:      matchRepo,
		Store:          store,
		EventPublisher: eventPublisher,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
	})

	expiryWorker := worker.NewExpiryWorker(store, eventPublisher, &worker.ExpiryWorkerConfig{
		HoldTimeout:           cfg.Reservation.HoldTimeout,
		SweepInterval:         cfg.Reservation.SweepInterval,
		BatchSize:             cfg.Reservation.SweepBatchSize,
		DeleteEmptiedInvoices: cfg.Reservation.DeleteEmptiedInvoices,
	})
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if err := expiryWorker.Start(workerCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Expiry worker failed to start: %v", err))
	}
	defer expiryWorker.Stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
		gin.DisableConsoleColor()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(appLog))

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	router.GET("/metrics", func(c *gin.Context) {
		stats := db.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db_pool": gin.H{
				"total_conns":    stats.TotalConns(),
				"acquired_conns": stats.AcquiredConns(),
				"idle_conns":     stats.IdleConns(),
				"max_conns":      stats.MaxConns(),
			},
			"expiry_worker": expiryWorker.GetStats(),
		})
	})

	authMiddleware := middleware.Auth(&middleware.AuthConfig{
		JWTSecret:           cfg.JWT.Secret,
		AllowHeaderFallback: cfg.IsDevelopment(),
	})

	idempotencyConfig := pkgmiddleware.DefaultIdempotencyConfig(redisClient.Client())
	idempotencyConfig.SkipPaths = []string{"/health", "/ready", "/metrics"}

	v1 := router.Group("/api/v1")
	{
		matches := v1.Group("/matches")
		{
			matches.POST("", authMiddleware, container.MatchHandler.CreateMatch)
			matches.GET("/:id", container.MatchHandler.GetMatch)
			matches.GET("/:id/seats", container.MatchHandler.ListSeats)
		}

		invoices := v1.Group("/invoices")
		invoices.Use(authMiddleware)
		{
			invoices.POST("/items", pkgmiddleware.IdempotencyMiddleware(idempotencyConfig), container.InvoiceHandler.AddItem)
			invoices.DELETE("/items/:id", pkgmiddleware.IdempotencyMiddleware(idempotencyConfig), container.InvoiceHandler.RemoveItem)
			invoices.GET("/:id", container.InvoiceHandler.GetInvoice)
			invoices.POST("/:id/pay", pkgmiddleware.IdempotencyMiddleware(idempotencyConfig), container.InvoiceHandler.PayInvoice)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Ticket service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
