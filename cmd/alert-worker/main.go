package main

import (
	"context"
	"time"

	"finledger/internal/buildinfo"
	"finledger/internal/cli"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger("info", applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting alert-worker",
		"version", buildinfo.Current().String(),
		"interval", cfg.EvaluationInterval,
		"concurrency", cfg.EvaluationConcurrency,
		"sqlite_db", cfg.SQLiteDBPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// New alerts are published for the delivery-worker when a broker is configured
	var publisher services.AlertPublisher
	if client := cli.InitPublisher(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	alerts := services.NewAlertService(repo, repo, repo, publisher, services.AlertOptions{
		LookaheadDays: cfg.BillLookaheadDays,
	})
	processor := worker.NewEvaluationProcessor(repo, alerts, worker.EvaluationConfig{
		PollInterval: cfg.EvaluationInterval,
		Concurrency:  cfg.EvaluationConcurrency,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Evaluation processor did not stop cleanly", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.LogError(ctx, "Failed to start evaluation processor", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
}
