// Package cli provides common process initialization shared by
// cmd/finledger, cmd/alert-worker and cmd/delivery-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finledger/internal/amqp"
	"finledger/internal/config"
	applog "finledger/internal/log"
	"finledger/internal/sheets"
	gsheet "finledger/internal/sheets/google"
	"finledger/internal/sheets/memory"
	"finledger/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger for component at the given level and
// makes it the slog default. Unknown levels fall back to info.
func SetupLogger(level, component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	lvl, err := applog.ParseLevel(level)
	cfg.Level = lvl
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.LogError(context.Background(), "Configuration could not be parsed", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.LogError(context.Background(), "Configuration validation failed", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// InitPublisher connects to the broker. It returns nil when AMQP is disabled
// or unreachable; alerts then wait for the delivery sweep.
func InitPublisher(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - alerts will be delivered by the pending sweep only")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without publishing", "error", err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// Sinks are the delivery targets chosen from configuration.
type Sinks struct {
	Alerts     sheets.AlertWriter
	Categories sheets.CategoryReader
}

// InitSinks returns the Google Sheets adapter when a spreadsheet is
// configured and the in-memory adapter otherwise.
func InitSinks(ctx context.Context, logger *applog.Logger, cfg *config.Config) (Sinks, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory sink")
		store := memory.NewFromFiles(filepath.Dir(cfg.SQLiteDBPath))
		return Sinks{Alerts: store, Categories: store}, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		AlertSheet:         cfg.GoogleAlertSheetName,
		CategoriesSheet:    cfg.GoogleCategoriesSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.ServiceAccountFile(),
	})
	if err != nil {
		return Sinks{}, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return Sinks{Alerts: client, Categories: client}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that carries logger and is cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	base := applog.ToContext(context.Background(), logger)
	ctx, cancel := context.WithCancel(base)
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(base, timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
