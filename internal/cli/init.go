// Package cli holds the startup steps shared by cmd/kakeibo and cmd/kakeibo-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	"kakeibo/internal/log"
	"kakeibo/internal/storage"
)

// ShutdownTimeout bounds the cleanup run after a termination signal.
const ShutdownTimeout = 30 * time.Second

// Bootstrap loads .env (if present) and the configuration, installs the
// process logger for component and exits on an invalid configuration.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := cfg.Logger(component)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// Fatal logs msg with err and exits.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, err.Error()}, args...)...)
	os.Exit(1)
}

// OpenDeliveryLog opens the SQLite delivery log, or returns nil when no path
// is configured.
func OpenDeliveryLog(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	if dbPath == "" {
		logger.Info("Delivery log disabled - no SQLITE_DB_PATH provided")
		return nil
	}
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		Fatal(logger, "Failed to initialize SQLite repository", err, "path", dbPath)
	}
	logger.Info("Delivery log enabled", "path", dbPath)
	return repo
}

// OpenQueue connects to the report queue. It returns nil when AMQP_URL is
// unset, or when the broker is unreachable and the queue is not required.
func OpenQueue(logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("Report queue disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		if required {
			Fatal(logger, "Failed to initialize AMQP client", err)
		}
		logger.Warn("Failed to initialize AMQP client, continuing without async reports", log.FieldError, err.Error())
		return nil
	}
	logger.Info("Report queue enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM, after
// cleanup has run with a bounded context.
func GracefulShutdown(logger *log.Logger, cleanup func(ctx context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()
	}()

	return ctx
}
