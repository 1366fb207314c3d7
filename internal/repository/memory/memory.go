// Package memory provides mutex-guarded in-process stores with the same
// semantics as the PostgreSQL repositories. Values are copied on the way in
// and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/polywatch/monitor/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Markets
// ──────────────────────────────────────────────────────────────────────────────

// MarketRepository is an in-memory market store keyed by condition id.
type MarketRepository struct {
	mu   sync.RWMutex
	rows map[string]*domain.StoredMarket
}

// NewMarketRepository creates an empty MarketRepository.
func NewMarketRepository() *MarketRepository {
	return &MarketRepository{rows: make(map[string]*domain.StoredMarket)}
}

func copyMarket(m *domain.StoredMarket) *domain.StoredMarket {
	c := *m
	c.Outcomes = append([]string{}, m.Outcomes...)
	c.OutcomePrices = append([]string{}, m.OutcomePrices...)
	c.ClobTokenIDs = append([]string{}, m.ClobTokenIDs...)
	return &c
}

// GetByConditionID returns a copy of the market, or domain.ErrNotFound.
func (r *MarketRepository) GetByConditionID(ctx context.Context, conditionID string) (*domain.StoredMarket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.rows[conditionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyMarket(m), nil
}

// Insert stores a copy of m. An existing condition id yields a wrapped
// domain.ErrStoreConflict and leaves the stored row untouched.
func (r *MarketRepository) Insert(ctx context.Context, m *domain.StoredMarket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[m.ConditionID]; ok {
		return fmt.Errorf("memory.market.Insert: %w", domain.ErrStoreConflict)
	}
	r.rows[m.ConditionID] = copyMarket(m)
	return nil
}

// SetMonitored flips the monitored flag, or returns domain.ErrNotFound.
func (r *MarketRepository) SetMonitored(ctx context.Context, conditionID string, monitored bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[conditionID]
	if !ok {
		return domain.ErrNotFound
	}
	m.Monitored = monitored
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// CountMonitored returns the number of markets with monitored=true.
func (r *MarketRepository) CountMonitored(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.rows {
		if m.Monitored {
			n++
		}
	}
	return n, nil
}

// ListRecentMonitored returns up to limit monitored markets, newest first.
func (r *MarketRepository) ListRecentMonitored(ctx context.Context, limit int) ([]*domain.StoredMarket, error) {
	r.mu.RLock()
	out := make([]*domain.StoredMarket, 0, len(r.rows))
	for _, m := range r.rows {
		if m.Monitored {
			out = append(out, copyMarket(m))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored markets.
func (r *MarketRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// ──────────────────────────────────────────────────────────────────────────────
// Trades
// ──────────────────────────────────────────────────────────────────────────────

// TradeRepository is an in-memory large-trade store keyed by trade id.
type TradeRepository struct {
	mu   sync.RWMutex
	rows map[string]*domain.StoredTrade
}

// NewTradeRepository creates an empty TradeRepository.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{rows: make(map[string]*domain.StoredTrade)}
}

// GetByTradeID returns a copy of the trade, or domain.ErrNotFound.
func (r *TradeRepository) GetByTradeID(ctx context.Context, tradeID string) (*domain.StoredTrade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rows[tradeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *t
	return &c, nil
}

// Insert stores a copy of t. An existing trade id yields a wrapped
// domain.ErrStoreConflict.
func (r *TradeRepository) Insert(ctx context.Context, t *domain.StoredTrade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.TradeID]; ok {
		return fmt.Errorf("memory.trade.Insert: %w", domain.ErrStoreConflict)
	}
	c := *t
	r.rows[t.TradeID] = &c
	return nil
}

// CountSince counts trades stored at or after since.
func (r *TradeRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.rows {
		if !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ListRecent returns up to limit trades ordered by trade timestamp, newest
// first.
func (r *TradeRepository) ListRecent(ctx context.Context, limit int) ([]*domain.StoredTrade, error) {
	r.mu.RLock()
	out := make([]*domain.StoredTrade, 0, len(r.rows))
	for _, t := range r.rows {
		c := *t
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored trades.
func (r *TradeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// ──────────────────────────────────────────────────────────────────────────────
// Bot config
// ──────────────────────────────────────────────────────────────────────────────

// ConfigRepository is an in-memory key/value store.
type ConfigRepository struct {
	mu   sync.RWMutex
	rows map[string]string
}

// NewConfigRepository creates a store holding the same seed rows as the SQL
// migration.
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{rows: map[string]string{
		domain.ConfigKeyMinBetSize:        "1000",
		domain.ConfigKeyMonitorAllMarkets: "false",
		domain.ConfigKeyPollingInterval:   "5000",
	}}
}

// NewEmptyConfigRepository creates a store with no rows.
func NewEmptyConfigRepository() *ConfigRepository {
	return &ConfigRepository{rows: make(map[string]string)}
}

// GetAll returns a copy of every key/value row.
func (r *ConfigRepository) GetAll(ctx context.Context) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.rows))
	for k, v := range r.rows {
		out[k] = v
	}
	return out, nil
}

// Set upserts one key. Last write wins.
func (r *ConfigRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[key] = value
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Notification log
// ──────────────────────────────────────────────────────────────────────────────

// NotificationRepository is an append-only in-memory audit log.
type NotificationRepository struct {
	mu      sync.RWMutex
	entries []domain.NotificationLogEntry
}

// NewNotificationRepository creates an empty log.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Append records one send attempt.
func (r *NotificationRepository) Append(ctx context.Context, e *domain.NotificationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

// CountByType tallies successful and failed sends of one notification type.
func (r *NotificationRepository) CountByType(ctx context.Context, typ domain.NotificationType) (succeeded, failed int64, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Type != typ {
			continue
		}
		if e.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed, nil
}

// Entries returns a copy of every logged entry in append order.
func (r *NotificationRepository) Entries() []domain.NotificationLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.NotificationLogEntry(nil), r.entries...)
}
