package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/feed"
	"github.com/polywatch/monitor/internal/metrics"
	"github.com/polywatch/monitor/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// Cycle results
// ──────────────────────────────────────────────────────────────────────────────

// MarketCycleResult summarises one market poll.
type MarketCycleResult struct {
	Success       bool      `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
	EventsChecked int       `json:"eventsChecked"`
	ItemsChecked  int       `json:"itemsChecked"`
	NewItemsFound int       `json:"newItemsFound"`
	StoreFailures int       `json:"storeFailures"`
	SendFailures  int       `json:"sendFailures"`
}

// TradeCycleResult summarises one trade poll. LargeTradesFound always equals
// NewItemsFound.
type TradeCycleResult struct {
	Success          bool      `json:"success"`
	Timestamp        time.Time `json:"timestamp"`
	ItemsChecked     int       `json:"itemsChecked"`
	NewItemsFound    int       `json:"newItemsFound"`
	LargeTradesFound int       `json:"largeTradesFound"`
	StoreFailures    int       `json:"storeFailures"`
	SendFailures     int       `json:"sendFailures"`
	MinBetSize       int64     `json:"minBetSize"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MonitorService
// ──────────────────────────────────────────────────────────────────────────────

// MonitorService runs the market and trade poll cycles. Each cycle processes
// its entities strictly one after another.
type MonitorService struct {
	feed       Feed
	markets    MarketRepo
	trades     TradeRepo
	config     ConfigRepo
	dispatcher *Dispatcher
	hub        Broadcaster
	metrics    *metrics.Metrics
	logger     *slog.Logger

	eventLimit int
	tradeLimit int
	now        func() time.Time
}

// MonitorOptions holds the fetch sizes of both cycles.
type MonitorOptions struct {
	EventLimit int
	TradeLimit int
}

// NewMonitorService creates a MonitorService. hub and m may be nil.
func NewMonitorService(
	f Feed,
	markets MarketRepo,
	trades TradeRepo,
	config ConfigRepo,
	dispatcher *Dispatcher,
	hub Broadcaster,
	m *metrics.Metrics,
	opts MonitorOptions,
	logger *slog.Logger,
) *MonitorService {
	if hub == nil {
		hub = noopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.EventLimit <= 0 {
		opts.EventLimit = 50
	}
	if opts.TradeLimit <= 0 {
		opts.TradeLimit = 100
	}
	return &MonitorService{
		feed:       f,
		markets:    markets,
		trades:     trades,
		config:     config,
		dispatcher: dispatcher,
		hub:        hub,
		metrics:    m,
		logger:     logger.With("component", "monitor"),
		eventLimit: opts.EventLimit,
		tradeLimit: opts.TradeLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// BotConfig reads the runtime configuration fresh from the store. A failed
// read falls back to the defaults.
func (s *MonitorService) BotConfig(ctx context.Context) domain.BotConfig {
	raw, err := s.config.GetAll(ctx)
	if err != nil {
		s.logger.Warn("bot_config_read_failed_using_defaults", "err", err)
		return domain.DefaultBotConfig()
	}
	return domain.ParseBotConfig(raw)
}

// ──────────────────────────────────────────────────────────────────────────────
// RunMarketCycle
// ──────────────────────────────────────────────────────────────────────────────

// RunMarketCycle fetches active events and alerts on every market whose
// condition id has never been stored. A fetch failure aborts the cycle and no
// result is returned.
func (s *MonitorService) RunMarketCycle(ctx context.Context) (*MarketCycleResult, error) {
	start := time.Now()

	events, err := s.feed.ListActiveEvents(ctx, s.eventLimit)
	if err != nil {
		s.metrics.RecordCycle(metrics.CycleMarkets, false, time.Since(start))
		s.logger.Error("market_cycle_fetch_failed", "err", err)
		return nil, fmt.Errorf("monitor.RunMarketCycle: %w", err)
	}

	res := &MarketCycleResult{EventsChecked: len(events)}
	for _, ev := range events {
		for _, m := range ev.Markets {
			res.ItemsChecked++
			s.processMarket(ctx, m, res)
		}
	}

	res.Success = true
	res.Timestamp = s.now()

	s.metrics.RecordChecked(metrics.CycleMarkets, res.ItemsChecked)
	s.metrics.RecordCycle(metrics.CycleMarkets, true, time.Since(start))
	s.hub.BroadcastCycleSummary(ws.CycleSummaryMessage{
		Type:          ws.MsgTypeCycleSummary,
		Cycle:         metrics.CycleMarkets,
		ItemsChecked:  res.ItemsChecked,
		NewItemsFound: res.NewItemsFound,
		StoreFailures: res.StoreFailures,
		SendFailures:  res.SendFailures,
		Timestamp:     res.Timestamp,
	})
	s.logger.Info("market_cycle_completed",
		"events_checked", res.EventsChecked,
		"items_checked", res.ItemsChecked,
		"new_items", res.NewItemsFound,
		"store_failures", res.StoreFailures,
		"send_failures", res.SendFailures,
		"took", time.Since(start),
	)
	return res, nil
}

func (s *MonitorService) processMarket(ctx context.Context, m domain.Market, res *MarketCycleResult) {
	if m.ConditionID == "" {
		s.logger.Warn("market_without_condition_id", "slug", m.Slug)
		return
	}

	novel, err := IsNovelMarket(ctx, s.markets, m)
	if err != nil {
		res.StoreFailures++
		s.metrics.RecordFailure(metrics.CycleMarkets, "lookup")
		s.logger.Error("market_lookup_failed", "condition_id", m.ConditionID, "err", err)
		return
	}
	if !novel {
		return
	}

	s.tally(metrics.CycleMarkets, s.dispatcher.DispatchMarket(ctx, m), &res.NewItemsFound, &res.StoreFailures, &res.SendFailures)
}

// ──────────────────────────────────────────────────────────────────────────────
// RunTradeCycle
// ──────────────────────────────────────────────────────────────────────────────

// RunTradeCycle reads the bot config, fetches recent trades and alerts on every
// significant trade not yet stored. Trades below the threshold are never
// looked up.
func (s *MonitorService) RunTradeCycle(ctx context.Context) (*TradeCycleResult, error) {
	start := time.Now()
	cfg := s.BotConfig(ctx)
	s.metrics.SetMinBetSize(cfg.MinBetSize)

	trades, err := s.feed.ListRecentTrades(ctx, feed.TradeFilter{Limit: s.tradeLimit})
	if err != nil {
		s.metrics.RecordCycle(metrics.CycleTrades, false, time.Since(start))
		s.logger.Error("trade_cycle_fetch_failed", "err", err)
		return nil, fmt.Errorf("monitor.RunTradeCycle: %w", err)
	}

	res := &TradeCycleResult{ItemsChecked: len(trades), MinBetSize: cfg.MinBetSize}
	for _, t := range FilterSignificant(trades, cfg.MinBetSize) {
		s.processTrade(ctx, t, cfg, res)
	}

	res.Success = true
	res.LargeTradesFound = res.NewItemsFound
	res.Timestamp = s.now()

	s.metrics.RecordChecked(metrics.CycleTrades, res.ItemsChecked)
	s.metrics.RecordCycle(metrics.CycleTrades, true, time.Since(start))
	s.hub.BroadcastCycleSummary(ws.CycleSummaryMessage{
		Type:          ws.MsgTypeCycleSummary,
		Cycle:         metrics.CycleTrades,
		ItemsChecked:  res.ItemsChecked,
		NewItemsFound: res.NewItemsFound,
		StoreFailures: res.StoreFailures,
		SendFailures:  res.SendFailures,
		Timestamp:     res.Timestamp,
	})
	s.logger.Info("trade_cycle_completed",
		"trades_checked", res.ItemsChecked,
		"large_trades", res.LargeTradesFound,
		"min_bet_size", res.MinBetSize,
		"store_failures", res.StoreFailures,
		"send_failures", res.SendFailures,
		"took", time.Since(start),
	)
	return res, nil
}

func (s *MonitorService) processTrade(ctx context.Context, t domain.Trade, cfg domain.BotConfig, res *TradeCycleResult) {
	if t.ID == "" {
		s.logger.Warn("trade_without_id", "market", t.Market)
		return
	}

	novel, err := IsNovelTrade(ctx, s.trades, t)
	if err != nil {
		res.StoreFailures++
		s.metrics.RecordFailure(metrics.CycleTrades, "lookup")
		s.logger.Error("trade_lookup_failed", "trade_id", t.ID, "err", err)
		return
	}
	if !novel {
		return
	}

	if !cfg.MonitorAllMarkets {
		muted, err := s.isMuted(ctx, t.Market)
		if err != nil {
			res.StoreFailures++
			s.metrics.RecordFailure(metrics.CycleTrades, "lookup")
			s.logger.Error("trade_market_lookup_failed", "trade_id", t.ID, "market", t.Market, "err", err)
			return
		}
		if muted {
			s.logger.Debug("trade_skipped_muted_market", "trade_id", t.ID, "market", t.Market)
			return
		}
	}

	s.tally(metrics.CycleTrades, s.dispatcher.DispatchTrade(ctx, t), &res.NewItemsFound, &res.StoreFailures, &res.SendFailures)
}

// isMuted reports whether the trade's market is stored with monitored=false.
// Markets the store has never seen are not muted.
func (s *MonitorService) isMuted(ctx context.Context, conditionID string) (bool, error) {
	if conditionID == "" {
		return false, nil
	}
	m, err := s.markets.GetByConditionID(ctx, conditionID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, asStoreFailure(err)
	}
	return !m.Monitored, nil
}

// tally folds a dispatch outcome into the cycle counters.
func (s *MonitorService) tally(cycle string, o DispatchOutcome, newItems, storeFailures, sendFailures *int) {
	switch o {
	case DispatchSent:
		*newItems++
		s.metrics.RecordNewItem(cycle)
	case DispatchSendFailed:
		*newItems++
		*sendFailures++
		s.metrics.RecordNewItem(cycle)
		s.metrics.RecordFailure(cycle, "send")
	case DispatchStoreFailed:
		*storeFailures++
		s.metrics.RecordFailure(cycle, "store")
	case DispatchConflict:
	}
}
