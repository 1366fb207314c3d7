// Package config provides process configuration loaded from environment
// variables (and an optional .env file). Runtime-tunable bot settings such as
// the alert threshold are NOT here; they live in the bot_config table.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	Env          string        `env:"ENVIRONMENT" envDefault:"development"` // "development" | "production"
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	CronSecret   string        `env:"CRON_SECRET"` // bearer token for /cron/*
	RateLimitRPS int           `env:"RATE_LIMIT_RPS" envDefault:"5"`
}

// DBConfig holds store settings.
type DBConfig struct {
	Driver          string        `env:"STORE_DRIVER" envDefault:"postgres"` // "postgres" | "memory"
	DSN             string        `env:"DATABASE_DSN"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	QueryTimeout    time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
}

// TelegramConfig holds chat transport settings.
type TelegramConfig struct {
	BotToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	ChatID        string        `env:"TELEGRAM_CHAT_ID"`
	WebhookSecret string        `env:"TELEGRAM_WEBHOOK_SECRET"`
	APIURL        string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	Timeout       time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`
}

// FeedConfig holds upstream API settings.
type FeedConfig struct {
	GammaURL string        `env:"POLYMARKET_GAMMA_URL" envDefault:"https://gamma-api.polymarket.com"`
	ClobURL  string        `env:"POLYMARKET_CLOB_URL" envDefault:"https://clob.polymarket.com"`
	Timeout  time.Duration `env:"FEED_TIMEOUT" envDefault:"10s"`
}

// MonitorConfig holds poll cycle settings.
type MonitorConfig struct {
	EventLimit         int           `env:"MONITOR_EVENT_LIMIT" envDefault:"50"`
	TradeLimit         int           `env:"MONITOR_TRADE_LIMIT" envDefault:"100"`
	SchedulerEnabled   bool          `env:"SCHEDULER_ENABLED" envDefault:"false"`
	MarketPollInterval time.Duration `env:"MARKET_POLL_INTERVAL" envDefault:"1m"`
}

// RedisConfig holds the optional webhook replay guard settings.
type RedisConfig struct {
	URL       string        `env:"REDIS_URL"` // "" disables the guard
	Password  string        `env:"REDIS_PASSWORD"`
	UpdateTTL time.Duration `env:"REDIS_UPDATE_TTL" envDefault:"24h"`
}

// DashboardConfig holds live alert stream and /api dashboard settings.
type DashboardConfig struct {
	JWTSecret      string   `env:"DASHBOARD_JWT_SECRET"` // "" = anonymous clients allowed
	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the whole process.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Telegram  TelegramConfig
	Feed      FeedConfig
	Monitor   MonitorConfig
	Redis     RedisConfig
	Dashboard DashboardConfig
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// UsesMemoryStore reports whether the in-memory store was selected.
func (c *Config) UsesMemoryStore() bool {
	return c.DB.Driver == "memory"
}

// Validate checks that all required configuration values are present and
// valid. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "postgres":
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set when STORE_DRIVER=postgres"))
		}
	case "memory":
		if c.IsProd() {
			errs = append(errs, errors.New("STORE_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.DB.Driver))
	}

	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN must be set"))
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID must be set"))
	}
	if c.IsProd() && c.Server.CronSecret == "" {
		errs = append(errs, errors.New("CRON_SECRET must be set in production"))
	}
	if c.IsProd() && c.Telegram.WebhookSecret == "" {
		errs = append(errs, errors.New("TELEGRAM_WEBHOOK_SECRET must be set in production"))
	}

	if c.Monitor.EventLimit <= 0 {
		errs = append(errs, fmt.Errorf("MONITOR_EVENT_LIMIT must be positive, got %d", c.Monitor.EventLimit))
	}
	if c.Monitor.TradeLimit <= 0 {
		errs = append(errs, fmt.Errorf("MONITOR_TRADE_LIMIT must be positive, got %d", c.Monitor.TradeLimit))
	}
	if c.Monitor.SchedulerEnabled && c.Monitor.MarketPollInterval < time.Second {
		errs = append(errs, errors.New("MARKET_POLL_INTERVAL must be at least 1s"))
	}
	if c.Server.RateLimitRPS < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must be at least 1"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %s", c.LogLevel))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Loading
// ──────────────────────────────────────────────────────────────────────────────

// Load reads configuration from the environment, after loading .env if one is
// present. Priority: environment variables > .env file > defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad loads and validates configuration. Intended for use in main();
// panics so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// MaskedBotToken returns the bot token with most characters hidden for logging.
func (c *Config) MaskedBotToken() string {
	return maskSecret(c.Telegram.BotToken)
}

// MaskedCronSecret returns the cron secret with most characters hidden.
func (c *Config) MaskedCronSecret() string {
	return maskSecret(c.Server.CronSecret)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
