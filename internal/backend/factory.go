// Package backend wires the router's dependencies from configuration:
// the ledger source behind the banking agent, the three agent adapters
// (in-process or remote), and the response cache.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"concierge/internal/agent"
	agentgoogle "concierge/internal/agent/google"
	"concierge/internal/cache"
	"concierge/internal/config"
	"concierge/internal/core"
	"concierge/internal/ledger"
	"concierge/internal/storage"
)

// CleanupFunc releases resources owned by a factory product.
type CleanupFunc func() error

// Factory builds runtime dependencies from config.
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a backend factory.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Ledger builds the banking agent's default ledger source. The returned
// readiness probe is non-nil only for backends with a live connection.
func (f *Factory) Ledger(ctx context.Context, cfg *config.Config) (ledger.Source, CleanupFunc, func(context.Context) error, error) {
	switch cfg.LedgerBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}

		// Seed an empty database from the configured JSON export.
		if cfg.LedgerPath != "" {
			count, err := repo.TransactionCount(ctx)
			if err != nil {
				repo.Close()
				return nil, nil, nil, err
			}
			if count == 0 {
				if err := repo.SeedFromFile(ctx, cfg.LedgerPath); err != nil {
					repo.Close()
					return nil, nil, nil, fmt.Errorf("seed ledger: %w", err)
				}
			}
		}

		f.logger.Info("Initialized SQLite ledger", "db_path", cfg.SQLiteDBPath)
		return repo, repo.Close, repo.Ping, nil

	case "file":
		f.logger.Info("Initialized file ledger", "path", cfg.LedgerPath)
		return ledger.FileSource{Path: cfg.LedgerPath}, nil, nil, nil

	default: // memory
		if cfg.LedgerPath == "" {
			f.logger.Info("No ledger configured, banking reports will be empty")
			return nil, nil, nil, nil
		}
		data, err := os.ReadFile(cfg.LedgerPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read ledger file: %w", err)
		}
		f.logger.Info("Initialized memory ledger", "path", cfg.LedgerPath)
		return ledger.InlineSource{Data: data}, nil, nil, nil
	}
}

// Adapters builds the three agent adapters. An agent with a configured
// URL is reached remotely; otherwise it is hosted in-process.
func (f *Factory) Adapters(ctx context.Context, cfg *config.Config, source ledger.Source) ([]agent.Adapter, error) {
	adapters := make([]agent.Adapter, 0, 3)

	if cfg.BankingAgentURL != "" {
		adapters = append(adapters, agent.NewRemote(core.TargetBanking, cfg.BankingAgentURL, cfg.AgentTimeout))
	} else {
		adapters = append(adapters, agent.NewBanking(source))
	}

	if cfg.CalendarAgentURL != "" {
		adapters = append(adapters, agent.NewRemote(core.TargetCalendar, cfg.CalendarAgentURL, cfg.AgentTimeout))
	} else {
		cal, err := f.calendarBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, agent.NewCalendar(cal))
	}

	if cfg.GmailAgentURL != "" {
		adapters = append(adapters, agent.NewRemote(core.TargetGmail, cfg.GmailAgentURL, cfg.AgentTimeout))
	} else {
		mail, err := f.mailBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, agent.NewGmail(mail))
	}

	return adapters, nil
}

func (f *Factory) calendarBackend(ctx context.Context, cfg *config.Config) (agent.CalendarBackend, error) {
	if cfg.CalendarBackend == "google" {
		cal, err := agentgoogle.NewCalendarFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Calendar backend: %w", err)
		}
		f.logger.Info("Initialized Google Calendar backend")
		return cal, nil
	}
	f.logger.Info("Initialized static calendar backend")
	return agent.StaticCalendar{}, nil
}

func (f *Factory) mailBackend(ctx context.Context, cfg *config.Config) (agent.MailBackend, error) {
	if cfg.GmailBackend == "google" {
		mail, err := agentgoogle.NewMailFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize Gmail backend: %w", err)
		}
		f.logger.Info("Initialized Gmail backend")
		return mail, nil
	}
	f.logger.Info("Initialized static mail backend")
	return agent.StaticMail{}, nil
}

// Cache builds the response cache store; nil store means caching is
// disabled.
func (f *Factory) Cache(ctx context.Context, cfg *config.Config) (cache.Store, CleanupFunc, error) {
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := cache.NewRedis(client, cfg.CacheTTL)

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}

		f.logger.Info("Initialized Redis response cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return store, client.Close, nil

	case "memory":
		store := cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)
		manager := cache.NewManager()
		manager.Register(store)
		manager.StartCleanup(10 * time.Minute)

		f.logger.Info("Initialized memory response cache", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
		return store, func() error { manager.Stop(); return nil }, nil

	default:
		f.logger.Info("Response cache disabled")
		return nil, nil, nil
	}
}
