package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expenses/internal/cli"
	applog "expenses/internal/log"
	"expenses/internal/sheets"
	gsheet "expenses/internal/sheets/google"
	mem "expenses/internal/sheets/memory"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger("info", applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting expenses-worker")

	amqpClient := cli.InitAMQP(logger, cfg)

	// the worker only reads; it never publishes changes
	svc := cli.InitLedger(context.Background(), logger, cfg, nil)

	var writer sheets.ReportWriter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SummarySheet:    cfg.SummarySheetName,
			CategorySheet:   cfg.CategorySheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	exporter := worker.NewExportWorker(svc, writer)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if err := svc.Close(); err != nil {
			logger.Warn("Ledger close error", applog.FieldError, err)
		}
	})

	if amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeLedgerChanges(ctx, exporter.HandleLedgerChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger change consumption failed", applog.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption - exports run on the interval only")
	}

	go exporter.Run(ctx, cfg.ExportInterval)

	logger.Info("Worker running", "export_interval", cfg.ExportInterval.String())
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
