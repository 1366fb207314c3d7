package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/metrics"
	"github.com/polywatch/monitor/internal/telegram"
	"github.com/polywatch/monitor/internal/ws"
)

// DispatchOutcome is the result of handing one novel entity to the dispatcher.
type DispatchOutcome int

const (
	// DispatchSent: persisted and the chat send succeeded.
	DispatchSent DispatchOutcome = iota
	// DispatchSendFailed: persisted, the send failed. Never retried.
	DispatchSendFailed
	// DispatchConflict: another cycle persisted it first. Nothing sent.
	DispatchConflict
	// DispatchStoreFailed: the insert failed. Nothing sent; the entity will
	// look novel again next cycle.
	DispatchStoreFailed
)

// Persisted reports whether the entity is now in the store because of this
// dispatch.
func (o DispatchOutcome) Persisted() bool {
	return o == DispatchSent || o == DispatchSendFailed
}

func (o DispatchOutcome) String() string {
	switch o {
	case DispatchSent:
		return "sent"
	case DispatchSendFailed:
		return "send_failed"
	case DispatchConflict:
		return "conflict"
	case DispatchStoreFailed:
		return "store_failed"
	default:
		return "unknown"
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Dispatcher
// ──────────────────────────────────────────────────────────────────────────────

// Dispatcher turns a novel entity into a stored row, a chat alert and an audit
// entry, in that order. The insert is the lock: whoever inserts first is the
// only one that sends.
type Dispatcher struct {
	markets  MarketRepo
	trades   TradeRepo
	logs     NotificationLogRepo
	notifier Notifier
	chatID   string
	hub      Broadcaster
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. hub and m may be nil.
func NewDispatcher(
	markets MarketRepo,
	trades TradeRepo,
	logs NotificationLogRepo,
	notifier Notifier,
	chatID string,
	hub Broadcaster,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	if hub == nil {
		hub = noopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		markets:  markets,
		trades:   trades,
		logs:     logs,
		notifier: notifier,
		chatID:   chatID,
		hub:      hub,
		metrics:  m,
		logger:   logger.With("component", "dispatcher"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DispatchMarket persists a newly detected market, then alerts on it.
func (d *Dispatcher) DispatchMarket(ctx context.Context, m domain.Market) DispatchOutcome {
	now := d.now()
	stored := domain.NewStoredMarket(m, true, now)

	if err := d.markets.Insert(ctx, stored); err != nil {
		if domain.IsConflict(err) {
			d.logger.Info("market_already_stored", "condition_id", m.ConditionID)
			return DispatchConflict
		}
		d.logger.Error("market_insert_failed", "condition_id", m.ConditionID, "err", err)
		return DispatchStoreFailed
	}

	text := telegram.FormatNewMarket(m)
	ok := d.deliver(ctx, domain.NotificationNewMarket, text)
	d.hub.BroadcastNewMarket(ws.NewMarketMessageFrom(stored, ok, now))

	if !ok {
		return DispatchSendFailed
	}
	d.logger.Info("new_market_notified", "condition_id", m.ConditionID, "slug", m.Slug)
	return DispatchSent
}

// DispatchTrade persists a significant novel trade, then alerts on it. The row
// is written with notified=true before the send so a failed send is never
// retried by a later cycle.
func (d *Dispatcher) DispatchTrade(ctx context.Context, t domain.Trade) DispatchOutcome {
	now := d.now()
	stored := domain.NewStoredTrade(t, now)

	if err := d.trades.Insert(ctx, stored); err != nil {
		if domain.IsConflict(err) {
			d.logger.Info("trade_already_stored", "trade_id", t.ID)
			return DispatchConflict
		}
		d.logger.Error("trade_insert_failed", "trade_id", t.ID, "err", err)
		return DispatchStoreFailed
	}

	text := telegram.FormatLargeTrade(stored)
	ok := d.deliver(ctx, domain.NotificationLargeTrade, text)
	d.hub.BroadcastLargeTrade(ws.LargeTradeMessageFrom(stored, ok, now))

	if !ok {
		return DispatchSendFailed
	}
	d.logger.Info("large_trade_notified",
		"trade_id", t.ID,
		"market", t.Market,
		"size", stored.Size.String(),
		"value", stored.Notional().StringFixed(2),
	)
	return DispatchSent
}

// deliver sends text once and appends the audit entry whatever the outcome.
// A failed audit append is logged and otherwise ignored.
func (d *Dispatcher) deliver(ctx context.Context, typ domain.NotificationType, text string) bool {
	err := d.notifier.SendMessage(ctx, d.chatID, text, telegram.ParseModeMarkdown)
	ok := err == nil
	if !ok {
		d.logger.Warn("notification_send_failed", "type", typ, "err", err)
	}
	d.metrics.RecordNotification(string(typ), ok)

	entry := domain.NewNotificationLogEntry(typ, text, d.chatID, ok, d.now())
	if err := d.logs.Append(ctx, entry); err != nil {
		d.logger.Error("notification_log_append_failed", "type", typ, "err", err)
	}
	return ok
}
