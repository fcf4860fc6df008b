package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mintwatch/internal/ai"
	"mintwatch/internal/config"
	"mintwatch/internal/health"
	"mintwatch/internal/ledger"
	"mintwatch/internal/logger"
	"mintwatch/internal/models"
	"mintwatch/internal/monitor"
	"mintwatch/internal/pumpfun"
	"mintwatch/internal/queue"
	"mintwatch/internal/resolver"
	"mintwatch/internal/state"
	"mintwatch/internal/storage"
	"mintwatch/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Optional .env file for local development secrets.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	for _, p := range []string{cfg.Storage.StatePath, cfg.Storage.DBPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("Failed to create data directory %s: %v", dir, err)
			}
		}
	}

	store, err := state.New(cfg.Storage.StatePath, models.Settings{
		MinScore:     cfg.Trading.MinScore,
		TradeAmount:  cfg.Trading.TradeAmount,
		PaperTrading: cfg.Trading.PaperTrading,
		AlertOnWatch: cfg.Trading.AlertOnWatch,
	})
	if err != nil {
		logger.Fatal("Failed to initialize state store: %v", err)
	}

	archive, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize trade archive: %v", err)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Error("Failed to close trade archive: %v", err)
		}
	}()

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	metadataClient := pumpfun.NewMetadataClient(cfg.Pumpfun.MetadataAPIURL, cfg.Pumpfun.MetadataTimeout)
	rpcClient := pumpfun.NewRPCClient(cfg.Pumpfun.RPCEndpoint, cfg.Pumpfun.RPCTimeout)
	sigResolver := resolver.New(rpcClient, cfg.Resolver.MaxAttempts, cfg.Resolver.BackoffBase)

	var notifier ledger.Notifier
	var alerter monitor.Alerter
	if telegramClient != nil {
		notifier = telegramClient
		alerter = telegramClient
	}

	var analyst monitor.Commentator
	if cfg.AI.Enabled {
		analyst = ai.New(cfg.AI.APIKey, cfg.AI.Model)
		logger.Info("AI commentary enabled (model: %q)", cfg.AI.Model)
	}

	book := ledger.New(store, notifier, archive, ledger.Config{
		MaxOpenTrades: cfg.Trading.MaxOpenTrades,
		AlertStepPct:  cfg.Trading.AlertStepPct,
		SolUsdRate:    cfg.Trading.SolUsdRate,
	})

	mon := monitor.New(store, book, metadataClient, alerter, analyst, archive)
	q := queue.New(sigResolver, mon.HandleResolved, cfg.Queue.MaxAge, cfg.Queue.DrainPause)
	mon.SetSink(q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		store.Flush()
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, mon)
	}

	if cfg.Health.Enabled {
		healthServer := &http.Server{
			Addr:    cfg.Health.Addr,
			Handler: health.Handler(mon),
		}
		go func() {
			logger.Info("Health endpoint listening on %s", cfg.Health.Addr)
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Health server failed: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = healthServer.Shutdown(shutdownCtx)
		}()
	}

	feed := pumpfun.NewFeed(
		cfg.Pumpfun.WSEndpoint,
		func(signature string) { mon.HandleSignature(ctx, signature) },
		store.SetConnected,
	)
	go feed.Run(ctx)

	logger.Info("Starting token watch (min_score: %d, trade_amount: %.3f SOL, max_open: %d, refresh: %v)",
		cfg.Trading.MinScore,
		cfg.Trading.TradeAmount,
		cfg.Trading.MaxOpenTrades,
		cfg.Pumpfun.RefreshInterval,
	)

	ticker := time.NewTicker(cfg.Pumpfun.RefreshInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Refresh cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	for {
		select {
		case <-ctx.Done():
			store.Flush()
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Refreshing %d open trades", store.OpenCount())
			handleCycleResult(mon.RefreshOpenTrades(ctx))
		}
	}
}
