package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"concierge/internal/amqp"
	"concierge/internal/backend"
	"concierge/internal/config"
	"concierge/internal/core"
	applog "concierge/internal/log"
	"concierge/internal/router"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.FromEnv(applog.ComponentAMQP))
	applog.SetDefault(logger)

	logger.Info("Starting ingest worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ingest worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := backend.NewFactory(logger.Logger)

	source, ledgerCleanup, _, err := factory.Ledger(ctx, cfg)
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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueryQueue, cfg.AMQPReplyQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Consume queries until shutdown, reconnecting on broken connections.
	go func() {
		for {
			err := amqpClient.ConsumeRequests(ctx, func(ctx context.Context, env core.RequestEnvelope) core.ResponseEnvelope {
				return rt.Route(ctx, env)
			})
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Consumption stopped, reconnecting", "error", err)
			if err := amqpClient.Reconnect(ctx); err != nil {
				logger.Error("Reconnect failed, shutting down", "error", err)
				cancel()
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Shutting down worker...")
	time.Sleep(2 * time.Second) // let in-flight deliveries settle
	logger.Info("Worker shutdown complete")
}
