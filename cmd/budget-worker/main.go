package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetd/internal/amqp"
	"budgetd/internal/cli"
	applog "budgetd/internal/log"
	"budgetd/internal/sheets"
	gsheet "budgetd/internal/sheets/google"
	memsheet "budgetd/internal/sheets/memory"
	"budgetd/internal/storage"
	"budgetd/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting budget-worker")

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var sheet sheets.CellWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		sheet = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		sheet = memsheet.New()
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided, exporting to an in-memory sheet")
	}

	exporter := worker.NewExportWorker(repo, sheet, cfg.ExportBatchSize)
	sweeper, err := worker.NewSweeper(exporter, cfg.ExportSweepSchedule, cfg.ExportTimezone)
	if err != nil {
		logger.Error("Failed to schedule export sweep", applog.FieldError, err)
		os.Exit(1)
	}

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("No AMQP_URL provided, relying on the export sweep only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		sweeper.Stop(ctx)
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Performing startup export check")
	if err := exporter.StartupCheck(ctx); err != nil {
		logger.Error("Startup export check failed", applog.FieldError, err)
	}

	sweeper.Start()

	if consumer != nil {
		go func() {
			err := consumer.ConsumeBudgetAssigned(ctx, exporter.HandleBudgetAssigned)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
