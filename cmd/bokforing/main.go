package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bokforing/internal/amqp"
	"bokforing/internal/backend"
	"bokforing/internal/cache"
	"bokforing/internal/cli"
	apphttp "bokforing/internal/http"
	"bokforing/internal/log"
	"bokforing/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	reports := services.NewReportService(store.Source, services.ReportConfig{
		CacheSize:            cfg.ReportCacheSize,
		CacheTTL:             cfg.ReportCacheTTL,
		SeparatePaymentCount: cfg.SeparatePaymentCount,
	})

	cacheManager := cache.NewManager()
	cacheManager.Register(reports.Cache())
	cacheManager.StartCleanup(time.Minute)

	importOpts := []services.ImportOption{
		services.WithReportInvalidator(reports),
		services.WithMaxBatchSize(cfg.ImportBatchSize),
	}
	if store.Batches != nil {
		importOpts = append(importOpts, services.WithBatchRecorder(store.Batches))
	}

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, imports run inline", log.FieldError, err)
		} else {
			importOpts = append(importOpts, services.WithPublisher(amqpClient))
			logger.Info("Import queue enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	importer := services.NewImportService(store.Writer, importOpts...)

	ready := map[string]apphttp.Pinger{}
	if store.Ready != nil {
		ready["storage"] = store.Ready
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Reports:            reports,
		Importer:           importer,
		Documents:          store.Documents,
		Ready:              ready,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		CacheStats:         reports.CacheStats,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting bokforing server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"import_queue", importer.QueueEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
