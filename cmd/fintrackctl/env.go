package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"fintrack/internal/advice"
	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
)

// Advisor produces advice tips.
type Advisor interface {
	Advise(ctx context.Context, txs []core.Transaction, sum core.FinancialSummary) []string
}

// env is what every command works on.
type env struct {
	txs      *services.TransactionService
	advisor  Advisor
	currency string
	location *time.Location
	// sheet connects to the exported spreadsheet on demand.
	sheet    func(ctx context.Context) (sheets.TransactionLister, error)
	cleanup  func()
}

// opener builds the env for one command run.
type opener func(ctx context.Context, configPath string, stderr io.Writer) (*env, error)

func openEnv(ctx context.Context, configPath string, stderr io.Writer) (*env, error) {
	cli.LoadEnvFile()
	if configPath != "" {
		os.Setenv(config.ConfigFileEnv, configPath)
	}

	level := slog.LevelWarn
	if lv := strings.TrimSpace(os.Getenv("LOG_LEVEL")); lv != "" {
		level = applog.ParseLevel(lv)
	}
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentCLI, Output: stderr})

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { res.Cleanup() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	led, err := ledger.Open(ctx, res.Store, ledger.Options{Seed: cfg.SeedExamples, Logger: logger})
	if err != nil {
		closeAll()
		return nil, err
	}

	// Changes made here reach the export worker the same way server changes do.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, changes will not be exported", applog.FieldError, err)
		} else {
			publisher = client
			closers = append(closers, func() { client.Close() })
		}
	}
	svc := services.NewTransactionService(led, publisher, logger)
	closers = append(closers, svc.Wait)

	var gen advice.Generator = advice.Disabled{}
	if cfg.AdviceEnabled() {
		g, err := advice.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			closeAll()
			return nil, err
		}
		gen = g
	}

	return &env{
		txs:      svc,
		advisor:  advice.New(gen, advice.Options{Timeout: cfg.AdviceTimeout, Logger: logger}),
		currency: cfg.Currency,
		location: loc,
		sheet: func(ctx context.Context) (sheets.TransactionLister, error) {
			client, err := gsheet.New(ctx, gsheet.Config{
				SpreadsheetID:   cfg.GoogleSpreadsheetID,
				SheetName:       cfg.GoogleSheetName,
				CredentialsJSON: cfg.GoogleServiceAccountJSON,
				CredentialsFile: cfg.GoogleServiceAccountFile,
			}, logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		cleanup: closeAll,
	}, nil
}
