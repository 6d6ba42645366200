package main

import (
	"context"
	"flag"
	"os"

	"bokforing/internal/backend"
	"bokforing/internal/cli"
	"bokforing/internal/core"
	"bokforing/internal/log"
	"bokforing/internal/services"
	gsheet "bokforing/internal/sheets/google"
)

func main() {
	from := flag.String("from", "", "first document date to export (YYYY-MM-DD)")
	to := flag.String("to", "", "last document date to export (YYYY-MM-DD)")
	flag.Parse()

	cfg, logger := cli.Bootstrap(log.ComponentSheets)
	ctx := context.Background()

	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for sheets export")
		os.Exit(1)
	}
	window := core.Window{From: *from, To: *to}
	if err := window.Validate(); err != nil {
		logger.Error("Invalid export window", log.FieldError, err, log.FieldWindow, window.Key())
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer store.Close()

	exporter, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	reports := services.NewReportService(store.Source, services.ReportConfig{
		CacheSize:            cfg.ReportCacheSize,
		CacheTTL:             cfg.ReportCacheTTL,
		SeparatePaymentCount: cfg.SeparatePaymentCount,
	})
	processor := services.NewExportProcessor(reports, exporter, services.ExportProcessorConfig{
		Interval: cfg.SheetsExportInterval,
		Window:   window,
	})

	if cfg.SheetsExportInterval == 0 {
		ref, err := processor.RunOnce(ctx)
		if err != nil {
			logger.Error("Report export failed", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Report exported", log.FieldSheetsRange, ref, log.FieldWindow, window.Key())
		return
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Export processor stop error", log.FieldError, err)
		}
	})
	if err := processor.Start(context.Background()); err != nil {
		logger.Error("Failed to start export processor", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(shutdownCtx, done)
}
