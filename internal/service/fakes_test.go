package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/feed"
	"github.com/polywatch/monitor/internal/repository/memory"
	"github.com/polywatch/monitor/internal/telegram"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ──────────────────────────────────────────────────────────────────────────────
// Feed
// ──────────────────────────────────────────────────────────────────────────────

type fakeFeed struct {
	mu        sync.Mutex
	events    []domain.MarketEvent
	trades    []domain.Trade
	markets   map[string]domain.Market
	eventsErr error
	tradesErr error
	lookups   int
}

func (f *fakeFeed) ListActiveEvents(ctx context.Context, limit int) ([]domain.MarketEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events, nil
}

func (f *fakeFeed) ListRecentTrades(ctx context.Context, filter feed.TradeFilter) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tradesErr != nil {
		return nil, f.tradesErr
	}
	return f.trades, nil
}

func (f *fakeFeed) GetMarketByConditionID(ctx context.Context, conditionID string) (*domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	m, ok := f.markets[conditionID]
	if !ok {
		return nil, fmt.Errorf("feed: %w", domain.ErrNotFound)
	}
	return &m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Notifier
// ──────────────────────────────────────────────────────────────────────────────

type sentMessage struct {
	ChatID string
	Text   string
	Mode   telegram.ParseMode
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) SendMessage(ctx context.Context, chatID, text string, mode telegram.ParseMode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text, Mode: mode})
	return n.err
}

func (n *fakeNotifier) Sent() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Stores with failure injection
// ──────────────────────────────────────────────────────────────────────────────

var errStoreDown = errors.New("connection refused")

// countingTradeRepo counts lookups and can fail inserts for chosen trade ids.
type countingTradeRepo struct {
	*memory.TradeRepository
	mu        sync.Mutex
	lookups   []string
	failIDs   map[string]bool
	lookupErr error
}

func newCountingTradeRepo() *countingTradeRepo {
	return &countingTradeRepo{TradeRepository: memory.NewTradeRepository(), failIDs: map[string]bool{}}
}

func (r *countingTradeRepo) GetByTradeID(ctx context.Context, id string) (*domain.StoredTrade, error) {
	r.mu.Lock()
	r.lookups = append(r.lookups, id)
	lookupErr := r.lookupErr
	r.mu.Unlock()
	if lookupErr != nil {
		return nil, lookupErr
	}
	return r.TradeRepository.GetByTradeID(ctx, id)
}

func (r *countingTradeRepo) Insert(ctx context.Context, t *domain.StoredTrade) error {
	r.mu.Lock()
	fail := r.failIDs[t.TradeID]
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("insert: %w: %v", domain.ErrStoreFailure, errStoreDown)
	}
	return r.TradeRepository.Insert(ctx, t)
}

func (r *countingTradeRepo) Lookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lookups...)
}

// flakyMarketRepo fails inserts for chosen condition ids.
type flakyMarketRepo struct {
	*memory.MarketRepository
	failIDs map[string]bool
}

func newFlakyMarketRepo(ids ...string) *flakyMarketRepo {
	r := &flakyMarketRepo{MarketRepository: memory.NewMarketRepository(), failIDs: map[string]bool{}}
	for _, id := range ids {
		r.failIDs[id] = true
	}
	return r
}

func (r *flakyMarketRepo) Insert(ctx context.Context, m *domain.StoredMarket) error {
	if r.failIDs[m.ConditionID] {
		return fmt.Errorf("insert: %w: %v", domain.ErrStoreFailure, errStoreDown)
	}
	return r.MarketRepository.Insert(ctx, m)
}

// lostRaceMarketRepo behaves as if another cycle inserted every market between
// this cycle's lookup and its insert.
type lostRaceMarketRepo struct {
	*memory.MarketRepository
}

func (lostRaceMarketRepo) GetByConditionID(ctx context.Context, conditionID string) (*domain.StoredMarket, error) {
	return nil, fmt.Errorf("market_repo.GetByConditionID: %w", domain.ErrNotFound)
}

func (lostRaceMarketRepo) Insert(ctx context.Context, m *domain.StoredMarket) error {
	return fmt.Errorf("market_repo.Insert: %w", domain.ErrStoreConflict)
}

// lostRaceTradeRepo is the trade counterpart of lostRaceMarketRepo.
type lostRaceTradeRepo struct {
	*memory.TradeRepository
}

func (lostRaceTradeRepo) GetByTradeID(ctx context.Context, id string) (*domain.StoredTrade, error) {
	return nil, fmt.Errorf("trade_repo.GetByTradeID: %w", domain.ErrNotFound)
}

func (lostRaceTradeRepo) Insert(ctx context.Context, t *domain.StoredTrade) error {
	return fmt.Errorf("trade_repo.Insert: %w", domain.ErrStoreConflict)
}

// brokenConfigRepo fails every call.
type brokenConfigRepo struct{}

func (brokenConfigRepo) GetAll(ctx context.Context) (map[string]string, error) {
	return nil, fmt.Errorf("config: %w: %v", domain.ErrStoreFailure, errStoreDown)
}

func (brokenConfigRepo) Set(ctx context.Context, key, value string) error {
	return fmt.Errorf("config: %w: %v", domain.ErrStoreFailure, errStoreDown)
}

// ──────────────────────────────────────────────────────────────────────────────
// Update guard
// ──────────────────────────────────────────────────────────────────────────────

type fakeGuard struct {
	seen map[int64]bool
	err  error
}

func (g *fakeGuard) FirstSeen(ctx context.Context, id int64) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen == nil {
		g.seen = map[int64]bool{}
	}
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	return true, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

func market(conditionID, question string) domain.Market {
	return domain.Market{
		ID:            "m-" + conditionID,
		ConditionID:   conditionID,
		Slug:          "slug-" + conditionID,
		Question:      question,
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []string{"0.5", "0.5"},
		ClobTokenIDs:  []string{"1", "2"},
		Active:        true,
	}
}

func trade(id, marketID, size, price string) domain.Trade {
	return domain.Trade{
		ID:        id,
		Market:    marketID,
		AssetID:   "asset-" + id,
		Side:      domain.SideBuy,
		Size:      size,
		Price:     price,
		Status:    "MATCHED",
		MatchTime: "1700000000",
	}
}
