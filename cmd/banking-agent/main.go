package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"concierge/internal/agent"
	"concierge/internal/backend"
	"concierge/internal/config"
	apphttp "concierge/internal/http"
	applog "concierge/internal/log"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.FromEnv(applog.ComponentAgent))
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := backend.NewFactory(logger.Logger)
	source, cleanup, _, err := factory.Ledger(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	srv := apphttp.NewAgentServer(":"+cfg.Port, agent.NewBanking(source))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second

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

	logger.Info("Starting banking agent", "port", cfg.Port, "ledger_backend", cfg.LedgerBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Agent stopped gracefully")
}
