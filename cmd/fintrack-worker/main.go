package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting fintrack-worker")
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, err)
		os.Exit(1)
	}

	if err := run(logger, cfg); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(logger *applog.Logger, cfg *config.Config) error {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter, err := gsheet.New(parent, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}

	ctx, done := cli.GracefulShutdown(parent, logger, 10*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close AMQP connection", applog.FieldError, err)
		}
	})

	w := worker.NewExportWorker(exporter, logger)
	err = client.ConsumeLedgerEvents(ctx, w.HandleEvent)
	cancel()
	<-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
