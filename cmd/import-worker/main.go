package main

import (
	"context"
	"errors"
	"os"

	"bokforing/internal/amqp"
	"bokforing/internal/cli"
	"bokforing/internal/log"
	"bokforing/internal/services"
	"bokforing/internal/storage"
	"bokforing/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting import-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the import worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	importer := services.NewImportService(repo,
		services.WithBatchRecorder(repo),
		services.WithMaxBatchSize(cfg.ImportBatchSize))
	w := worker.NewImportWorker(importer, repo)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	// Snapshots are imported once per start; their batch ids make reruns no-ops.
	if err := w.ImportSnapshots(ctx, cfg.DataDirectory); err != nil {
		logger.Warn("Snapshot import failed", log.FieldError, err, "data_directory", cfg.DataDirectory)
	}

	logger.Info("Consuming import messages", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	if err := client.ConsumeWithRetry(ctx, w.HandleImportMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Import consumer stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Import worker stopped gracefully")
}
