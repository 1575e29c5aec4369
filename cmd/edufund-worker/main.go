package main

import (
	"context"
	"fmt"
	"os"

	"edufund/internal/amqp"
	"edufund/internal/cli"
	"edufund/internal/config"
	"edufund/internal/log"
	"edufund/internal/services"
	gsheet "edufund/internal/sheets/google"
	"edufund/internal/storage"
	"edufund/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(os.Stdout, cfg, log.ComponentWorker)
	logger.Info("Starting edufund-worker")

	cli.ExitOnInvalid(logger, validate(cfg))

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker exited with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// validate checks the shared settings plus what the sheets mirror needs.
// The worker reads the aggregates the API wrote, so it needs the shared
// SQLite file.
func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateSheets(); err != nil {
		return err
	}
	if cfg.StorageBackend != "sqlite" {
		return fmt.Errorf("edufund-worker requires STORAGE_BACKEND=sqlite, got %q", cfg.StorageBackend)
	}
	return nil
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	ctx = log.IntoContext(ctx, logger)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("initialize SQLite repository: %w", err)
	}
	defer repo.Close()

	creds, err := cfg.ServiceAccountJSON()
	if err != nil {
		return err
	}
	sheet, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	processor := services.NewSyncProcessor(repo, sheet, services.SyncProcessorConfig{
		Interval: cfg.SyncInterval,
		Timeout:  services.DefaultSyncProcessorConfig().Timeout,
	})
	return worker.NewSyncWorker(client, processor, logger).Run(ctx)
}
