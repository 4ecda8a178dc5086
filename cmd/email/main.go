package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"orderhub/internal/app/email"
	"orderhub/internal/config"
	"orderhub/internal/handler/http/admin"
	"orderhub/internal/infrastructure/database"
	"orderhub/internal/infrastructure/kafka"
	"orderhub/internal/metrics"
	"orderhub/internal/relay"
	postgres_deadletter_repo "orderhub/internal/repository/deadletter_repo/postgres"
	postgres_inbox_repo "orderhub/internal/repository/inbox_repo/postgres"
)

func main() {
	cfg, err := config.LoadEmail()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Email service starting...", zap.String("consumer_group", cfg.ConsumerGroup))

	db, err := database.Connect(cfg.DB, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(cfg.MigrationsPath, cfg.DB.MigrationURL(), appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	appMetrics := metrics.NewMetrics("orderhub")

	processedRepository := postgres_inbox_repo.NewProcessedEventRepository(db, appLogger)
	deadLetterRepository := postgres_deadletter_repo.NewDeadLetterRepository(db, appLogger)

	sender := email.NewSMTPSender(cfg.SMTP)
	emailService := email.NewService(sender, processedRepository, cfg.ConsumerGroup,
		appLogger.With(zap.String("component", "EmailService")))

	coordinator := relay.NewCoordinator(
		cfg.ConsumerGroup,
		emailService.HandleOrderCreated,
		deadLetterRepository,
		cfg.RetryBudget,
		cfg.RetryBackoff,
		cfg.RetryCap,
		appLogger.With(zap.String("component", "DeliveryCoordinator")),
		appMetrics,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		kafka.RunGroup(ctx, cfg.Workers, cfg.Kafka.Brokers(), cfg.ConsumerGroup, cfg.Kafka.Topic,
			coordinator.HandleMessage, appLogger.With(zap.String("component", "KafkaConsumer")))
	}()
	appLogger.Info("Kafka order consumer started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.Int("workers", cfg.Workers))

	adminRouter := admin.NewRouter(cfg.ConsumerGroup, deadLetterRepository, appLogger)
	serverAddr := fmt.Sprintf(":%d", cfg.AdminHTTPPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      adminRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Admin HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Email service started", zap.String("admin_address", serverAddr))

	<-sigChan

	appLogger.Info("Shutting down email service...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Email service graceful shutdown failed", zap.Error(err))
	}
	appLogger.Info("Email service stopped.")
}
