package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"concierge/internal/amqp"
	"concierge/internal/backend"
	"concierge/internal/config"
	apphttp "concierge/internal/http"
	applog "concierge/internal/log"
	"concierge/internal/router"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.FromEnv(applog.ComponentApp))
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := backend.NewFactory(logger.Logger)

	source, ledgerCleanup, ledgerReady, err := factory.Ledger(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}
	if ledgerCleanup != nil {
		defer ledgerCleanup()
	}

	adapters, err := factory.Adapters(ctx, cfg, source)
	if err != nil {
		logger.Error("Failed to initialize agents", "error", err)
		os.Exit(1)
	}

	store, cacheCleanup, err := factory.Cache(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize response cache", "error", err, "backend", cfg.CacheBackend)
		os.Exit(1)
	}
	if cacheCleanup != nil {
		defer cacheCleanup()
	}

	rt := router.New(adapters,
		router.WithCache(store),
		router.WithAgentTimeout(cfg.AgentTimeout),
		router.WithDefaultCurrency(cfg.DefaultCurrency))

	// Optional async ingest path through the broker.
	var publisher apphttp.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueryQueue, cfg.AMQPReplyQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("Initialized AMQP ingest queue",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueryQueue)
	}

	srv := apphttp.NewServer(":"+cfg.Port, rt,
		apphttp.WithIngest(cfg.IngestSecret, publisher),
		apphttp.WithReadyCheck(ledgerReady),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting concierge router",
		"port", cfg.Port,
		"ledger_backend", cfg.LedgerBackend,
		"cache_backend", cfg.CacheBackend,
		"ingest_enabled", cfg.IngestSecret != "")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
