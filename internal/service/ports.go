package service

import (
	"context"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/feed"
	"github.com/polywatch/monitor/internal/telegram"
	"github.com/polywatch/monitor/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// Stores: implemented by internal/repository and internal/repository/memory
// ──────────────────────────────────────────────────────────────────────────────

// MarketRepo persists markets keyed by condition id.
type MarketRepo interface {
	GetByConditionID(ctx context.Context, conditionID string) (*domain.StoredMarket, error)
	// Insert must return domain.ErrStoreConflict (wrapped) when the condition
	// id already exists.
	Insert(ctx context.Context, m *domain.StoredMarket) error
	SetMonitored(ctx context.Context, conditionID string, monitored bool) error
	CountMonitored(ctx context.Context) (int64, error)
	ListRecentMonitored(ctx context.Context, limit int) ([]*domain.StoredMarket, error)
}

// TradeRepo persists large trades keyed by trade id.
type TradeRepo interface {
	GetByTradeID(ctx context.Context, tradeID string) (*domain.StoredTrade, error)
	// Insert must return domain.ErrStoreConflict (wrapped) when the trade id
	// already exists.
	Insert(ctx context.Context, t *domain.StoredTrade) error
	CountSince(ctx context.Context, since time.Time) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.StoredTrade, error)
}

// ConfigRepo is the bot_config key/value store.
type ConfigRepo interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// NotificationLogRepo is the append-only audit log.
type NotificationLogRepo interface {
	Append(ctx context.Context, e *domain.NotificationLogEntry) error
}

// NotificationStats reads audit log totals for the dashboard.
type NotificationStats interface {
	CountByType(ctx context.Context, typ domain.NotificationType) (succeeded, failed int64, err error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Upstream and outbound
// ──────────────────────────────────────────────────────────────────────────────

// Feed is the read side of Polymarket. Implemented by *feed.Client.
type Feed interface {
	ListActiveEvents(ctx context.Context, limit int) ([]domain.MarketEvent, error)
	ListRecentTrades(ctx context.Context, f feed.TradeFilter) ([]domain.Trade, error)
	MarketLookup
}

// MarketLookup resolves a single market upstream.
type MarketLookup interface {
	GetMarketByConditionID(ctx context.Context, conditionID string) (*domain.Market, error)
}

// Notifier delivers chat messages. Implemented by *telegram.Client.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string, mode telegram.ParseMode) error
}

// Broadcaster pushes alerts to live dashboards. Implemented by *ws.Hub.
type Broadcaster interface {
	BroadcastNewMarket(msg ws.NewMarketMessage)
	BroadcastLargeTrade(msg ws.LargeTradeMessage)
	BroadcastCycleSummary(msg ws.CycleSummaryMessage)
}

// UpdateGuard drops replayed webhook updates. Implemented by internal/dedup.
type UpdateGuard interface {
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastNewMarket(ws.NewMarketMessage)       {}
func (noopBroadcaster) BroadcastLargeTrade(ws.LargeTradeMessage)     {}
func (noopBroadcaster) BroadcastCycleSummary(ws.CycleSummaryMessage) {}
