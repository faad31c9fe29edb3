// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Agent dispatch
	AgentTimeout     time.Duration
	BankingAgentURL  string
	CalendarAgentURL string
	GmailAgentURL    string

	// Ledger
	LedgerBackend string // memory | file | sqlite
	LedgerPath    string
	SQLiteDBPath  string

	// Response cache
	CacheBackend  string // none | memory | redis
	CacheTTL      time.Duration
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AMQP
	AMQPURL        string
	AMQPExchange   string
	AMQPQueryQueue string
	AMQPReplyQueue string

	// Ingest endpoint
	IngestSecret string

	// Calendar / mail backends
	CalendarBackend string // static | google
	GmailBackend    string // static | google

	DefaultCurrency string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		AgentTimeout:     getEnvDuration("AGENT_TIMEOUT", 10*time.Second),
		BankingAgentURL:  getEnv("BANKING_AGENT_URL", ""),
		CalendarAgentURL: getEnv("CALENDAR_AGENT_URL", ""),
		GmailAgentURL:    getEnv("GMAIL_AGENT_URL", ""),

		LedgerBackend: getEnv("LEDGER_BACKEND", "memory"),
		LedgerPath:    getEnv("LEDGER_PATH", ""),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/concierge.db"),

		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:     getEnvInt("CACHE_SIZE", 200),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "concierge"),
		AMQPQueryQueue: getEnv("AMQP_QUERY_QUEUE", "queries"),
		AMQPReplyQueue: getEnv("AMQP_REPLY_QUEUE", "replies"),

		IngestSecret: getEnv("INGEST_SECRET", ""),

		CalendarBackend: getEnv("CALENDAR_BACKEND", "static"),
		GmailBackend:    getEnv("GMAIL_BACKEND", "static"),

		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if c.AgentTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid agent timeout %v: must be at least 1 second", c.AgentTimeout))
	} else if c.AgentTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid agent timeout %v: must be at most 5 minutes", c.AgentTimeout))
	}

	// Validate ledger backend
	validBackends := []string{"memory", "file", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.LedgerBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}

	if c.LedgerBackend == "file" && c.LedgerPath == "" {
		errors = append(errors, "ledger path cannot be empty when using file backend")
	}

	// Validate SQLite configuration if backend is sqlite
	if c.LedgerBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate cache backend
	switch c.CacheBackend {
	case "none", "memory", "redis":
	default:
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of [none memory redis]", c.CacheBackend))
	}
	if c.CacheBackend != "none" {
		if c.CacheTTL < time.Second {
			errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
		}
		if c.CacheBackend == "memory" && c.CacheSize < 1 {
			errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
		}
		if c.CacheBackend == "redis" && c.RedisAddr == "" {
			errors = append(errors, "Redis address cannot be empty when using redis cache")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueryQueue == "" {
			errors = append(errors, "AMQP query queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPReplyQueue == "" {
			errors = append(errors, "AMQP reply queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate agent URLs if provided
	for name, agentURL := range map[string]string{
		"banking":  c.BankingAgentURL,
		"calendar": c.CalendarAgentURL,
		"gmail":    c.GmailAgentURL,
	} {
		if agentURL == "" {
			continue
		}
		parsed, err := url.Parse(agentURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s agent URL '%s': must be an http(s) URL", name, agentURL))
		}
	}

	// Validate calendar / mail backends
	if c.CalendarBackend != "static" && c.CalendarBackend != "google" {
		errors = append(errors, fmt.Sprintf("invalid calendar backend '%s': must be one of [static google]", c.CalendarBackend))
	}
	if c.GmailBackend != "static" && c.GmailBackend != "google" {
		errors = append(errors, fmt.Sprintf("invalid gmail backend '%s': must be one of [static google]", c.GmailBackend))
	}

	if len(c.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
