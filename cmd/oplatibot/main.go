package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/cbr"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/httpapi"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/kafka"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/ledger/pgledger"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/ledger/xlsx"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/metrics"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/receipts"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/sessions"
	"github.com/larriantoniy/oplati_pay_bot/internal/adapters/tg"
	"github.com/larriantoniy/oplati_pay_bot/internal/config"
	"github.com/larriantoniy/oplati_pay_bot/internal/ports"
	"github.com/larriantoniy/oplati_pay_bot/internal/useCases"
)

const (
	envDev  = "dev"
	envProd = "prod"

	janitorInterval = time.Minute
)

func main() {
	// .env необязателен
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := setupLogger(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("exit")
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	ledger, err := newLedger(cfg, logger.With("component", "ledger"))
	if err != nil {
		return err
	}
	if err := ledger.Init(ctx); err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}

	store, closeStore, err := newSessionStore(ctx, cfg, logger.With("component", "sessions"))
	if err != nil {
		return err
	}
	defer closeStore()

	receiptStore, err := receipts.New(cfg.Receipts.Dir, logger.With("component", "receipts"))
	if err != nil {
		return err
	}

	rates := cbr.New(logger.With("component", "cbr"),
		cbr.WithURL(cfg.Rates.URL),
		cbr.WithTimeout(cfg.Rates.Timeout),
	)

	events := newEvents(cfg, logger)
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn("kafka writer close", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.New(reg)

	tgClient, err := tg.NewBotClient(tg.Config{
		ApiID:    cfg.Telegram.ApiID,
		ApiHash:  cfg.Telegram.ApiHash,
		BotToken: cfg.Telegram.BotToken,
		DataDir:  cfg.Telegram.DataDir,
		Proxy:    cfg.Telegram.Proxy,
	}, logger.With("component", "tdlib"))
	if err != nil {
		return fmt.Errorf("tdlib client: %w", err)
	}
	defer tgClient.Close()

	notifier := useCases.NewAdminNotifier(logger, tgClient, cfg.Admin.ChatID, cfg.Admin.Username, cfg.Payment.CurrencySign)
	conversation := useCases.NewConversation(
		logger,
		tgClient,
		store,
		rates,
		ledger,
		receiptStore,
		events,
		notifier,
		botMetrics,
		useCases.ConversationConfig{
			CardNumber:     cfg.Payment.CardNumber,
			Markup:         decimal.NewFromFloat(cfg.Payment.Markup),
			CurrencySign:   cfg.Payment.CurrencySign,
			ManagerContact: cfg.Admin.ManagerContact,
		},
	)

	if cfg.HTTP.Addr != "" {
		if cfg.Env != envDev {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(reg, ledger, logger), logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("ops http server", "error", err)
			}
		}()
	}

	logger.Info("bot started",
		"ledger", cfg.Ledger.Driver,
		"sessions", cfg.Sessions.Driver,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)
	return useCases.NewDispatcher(tgClient, conversation, logger).Run(ctx)
}

func newLedger(cfg *config.AppConfig, logger *slog.Logger) (ports.Ledger, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerPostgres:
		return pgledger.Open(cfg.Ledger.DSN, logger)
	default:
		return xlsx.New(cfg.Ledger.Path, logger)
	}
}

func newSessionStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (ports.SessionStore, func(), error) {
	if cfg.Sessions.Driver == config.SessionsRedis {
		client, err := sessions.NewRedisClient(ctx, cfg.Sessions.RedisAddr, cfg.Sessions.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", "error", err)
			}
		}
		return sessions.NewRedisStore(client, cfg.Sessions.IdleTTL), closeFn, nil
	}

	store := sessions.NewMemoryStore(cfg.Sessions.IdleTTL, logger)
	go store.RunJanitor(ctx, janitorInterval)
	return store, func() {}, nil
}

type eventPublisher interface {
	ports.OrderEvents
	Close() error
}

func newEvents(cfg *config.AppConfig, logger *slog.Logger) eventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("kafka brokers not set, order events disabled")
		return kafka.Noop{}
	}
	return kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func setupLogger(env string) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case envDev:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
		logger.Warn("unknown env, using prod log level", "env", env)
	}

	return logger
}
