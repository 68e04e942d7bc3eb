package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/advice"
	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/telegram"
)

const (
	shutdownTimeout     = 30 * time.Second
	maintenanceInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	if err := run(logger, cfg); err != nil {
		logger.Error("fintrack stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *applog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	led, err := ledger.Open(ctx, res.Store, ledger.Options{Seed: cfg.SeedExamples, Logger: logger})
	if err != nil {
		return err
	}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export", applog.FieldError, err)
		} else {
			publisher = client
			defer client.Close()
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	svc := services.NewTransactionService(led, publisher, logger)

	advisor, err := newAdvisor(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, led, advisor, apphttp.Options{
		Currency:           cfg.Currency,
		Location:           loc,
		BotToken:           cfg.TelegramToken,
		InitDataMaxAge:     cfg.InitDataMaxAge,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ChartCacheSize:     cfg.ChartCacheSize,
		ChartCacheTTL:      cfg.ChartCacheTTL,
		Logger:             logger,
	})

	var (
		bot *telegram.Bot
		api *tgbotapi.BotAPI
	)
	if cfg.TelegramToken != "" {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("connect telegram bot: %w", err)
		}
		allowed, err := cfg.AllowedUserIDs()
		if err != nil {
			return err
		}
		bot = telegram.New(api, svc, advisor, telegram.Options{
			AllowedUsers: allowed,
			WebAppURL:    cfg.WebAppURL,
			Currency:     cfg.Currency,
			Location:     loc,
			Logger:       logger,
		})
	} else {
		logger.Info("Telegram bot disabled - no TELEGRAM_TOKEN provided")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(srv.RunMaintenance(gctx, maintenanceInterval))
	})
	if bot != nil {
		g.Go(func() error {
			return ignoreCanceled(telegram.Poll(gctx, api, bot))
		})
	}

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", bcfg.Type,
		"advice_enabled", cfg.AdviceEnabled(),
		"bot_enabled", cfg.TelegramToken != "")

	err = g.Wait()
	// Pending ledger events are flushed before the broker connection closes.
	svc.Wait()
	return err
}

func newAdvisor(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*advice.Advisor, error) {
	opts := advice.Options{Timeout: cfg.AdviceTimeout, Logger: logger}
	if !cfg.AdviceEnabled() {
		logger.Info("Advice disabled - no GEMINI_API_KEY provided")
		return advice.New(advice.Disabled{}, opts), nil
	}
	gen, err := advice.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	return advice.New(gen, opts), nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
