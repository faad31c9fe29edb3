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
	agentgoogle "concierge/internal/agent/google"
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

	var mail agent.MailBackend = agent.StaticMail{}
	if cfg.GmailBackend == "google" {
		gmail, err := agentgoogle.NewMailFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Gmail backend", "error", err)
			os.Exit(1)
		}
		mail = gmail
		logger.Info("Using Gmail backend")
	}

	srv := apphttp.NewAgentServer(":"+cfg.Port, agent.NewGmail(mail))
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

	logger.Info("Starting gmail agent", "port", cfg.Port, "backend", cfg.GmailBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Agent stopped gracefully")
}
