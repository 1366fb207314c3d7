// Package app builds the object graph shared by the server and the one-shot
// poller: logger, stores, upstream clients and the monitor service.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/polywatch/monitor/internal/config"
	"github.com/polywatch/monitor/internal/feed"
	"github.com/polywatch/monitor/internal/metrics"
	"github.com/polywatch/monitor/internal/repository"
	"github.com/polywatch/monitor/internal/repository/memory"
	"github.com/polywatch/monitor/internal/service"
	"github.com/polywatch/monitor/internal/telegram"
)

// ──────────────────────────────────────────────────────────────────────────────
// Logger
// ──────────────────────────────────────────────────────────────────────────────

// NewLogger returns a JSON logger in production and a debug-level text logger
// otherwise, both writing to stdout.
func NewLogger(cfg *config.Config) *slog.Logger {
	return NewLoggerTo(cfg, os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(cfg *config.Config, w io.Writer) *slog.Logger {
	if !cfg.IsProd() {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Stores
// ──────────────────────────────────────────────────────────────────────────────

// Stores groups the four repositories behind the service interfaces.
type Stores struct {
	Markets service.MarketRepo
	Trades  service.TradeRepo
	Config  service.ConfigRepo
	Logs    service.NotificationLogRepo
	Stats   service.NotificationStats

	db *sqlx.DB
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenStores returns in-memory stores or connects to PostgreSQL and applies
// the migrations, depending on STORE_DRIVER.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn("using in-memory store; state is lost on restart")
		return NewMemoryStores(), nil
	}

	db, err := repository.Open(ctx, cfg.DB.DSN,
		cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.ConnMaxLifetime, cfg.DB.QueryTimeout)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	if err := repository.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	logger.Info("migrations applied")

	notifications := repository.NewNotificationRepository(db)
	return &Stores{
		Markets: repository.NewMarketRepository(db),
		Trades:  repository.NewTradeRepository(db),
		Config:  repository.NewConfigRepository(db),
		Logs:    notifications,
		Stats:   notifications,
		db:      db,
	}, nil
}

// NewMemoryStores returns fresh in-memory stores seeded with the default bot
// config.
func NewMemoryStores() *Stores {
	notifications := memory.NewNotificationRepository()
	return &Stores{
		Markets: memory.NewMarketRepository(),
		Trades:  memory.NewTradeRepository(),
		Config:  memory.NewConfigRepository(),
		Logs:    notifications,
		Stats:   notifications,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Services
// ──────────────────────────────────────────────────────────────────────────────

// Services holds the upstream clients and the monitor built on them.
type Services struct {
	Feed     *feed.Client
	Telegram *telegram.Client
	Monitor  *service.MonitorService
}

// NewServices builds the feed and Telegram clients, the dispatcher and the
// monitor service. hub and m may be nil.
func NewServices(cfg *config.Config, stores *Stores, hub service.Broadcaster, m *metrics.Metrics, logger *slog.Logger) *Services {
	feedClient := feed.NewClient(cfg.Feed.GammaURL, cfg.Feed.ClobURL, cfg.Feed.Timeout, logger)
	tg := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.Timeout, logger)

	dispatcher := service.NewDispatcher(stores.Markets, stores.Trades, stores.Logs, tg,
		cfg.Telegram.ChatID, hub, m, logger)
	monitor := service.NewMonitorService(feedClient, stores.Markets, stores.Trades, stores.Config,
		dispatcher, hub, m, service.MonitorOptions{
			EventLimit: cfg.Monitor.EventLimit,
			TradeLimit: cfg.Monitor.TradeLimit,
		}, logger)

	return &Services{Feed: feedClient, Telegram: tg, Monitor: monitor}
}
