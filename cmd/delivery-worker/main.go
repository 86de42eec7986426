package main

import (
	"context"
	"errors"
	"time"

	"finledger/internal/buildinfo"
	"finledger/internal/cli"
	applog "finledger/internal/log"
	"finledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger("info", applog.ComponentDelivery)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentDelivery)

	logger.Info("Starting delivery-worker",
		"version", buildinfo.Current().String(),
		"interval", cfg.DeliveryInterval,
		"batch_size", cfg.DeliveryBatchSize,
		"sqlite_db", cfg.SQLiteDBPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	sinks, err := cli.InitSinks(ctx, logger, cfg)
	if err != nil {
		logger.LogError(ctx, "Failed to initialize delivery sink", err)
		return
	}
	deliveries := worker.NewDeliveryWorker(repo, repo, sinks.Alerts, sinks.Categories, cfg.DeliveryBatchSize)

	logger.Info("Synchronizing categories...")
	if err := deliveries.SyncCategories(ctx); err != nil {
		// Don't exit - alerts can still be delivered
		logger.LogError(ctx, "Failed to sync categories", err)
	}

	logger.Info("Performing startup delivery check...")
	if err := deliveries.StartupDeliveryCheck(ctx); err != nil {
		logger.LogError(ctx, "Failed startup delivery check", err)
	}

	if client := cli.InitPublisher(logger, cfg); client != nil {
		defer client.Close()
		go func() {
			if err := client.ConsumeAlerts(ctx, deliveries.HandleAlertMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.LogError(ctx, "Alert consumption stopped, relying on the pending sweep", err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption - pending sweep only")
	}

	go func() {
		ticker := time.NewTicker(cfg.DeliveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := deliveries.ProcessPendingDeliveries(ctx); err != nil {
					logger.LogError(ctx, "Periodic delivery failed", err)
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
