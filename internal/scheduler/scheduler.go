// Package scheduler runs the two poll cycles in-process for deployments that
// have no external cron:
//  1. marketLoop – polls active events every MARKET_POLL_INTERVAL.
//  2. tradeLoop  – polls recent trades, sleeping for the polling_interval
//     read from the bot config after every cycle.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Cycles interface: implemented by *service.MonitorService
// ──────────────────────────────────────────────────────────────────────────────

// Cycles is what the Scheduler needs from the monitor service.
type Cycles interface {
	RunMarketCycle(ctx context.Context) (*service.MarketCycleResult, error)
	RunTradeCycle(ctx context.Context) (*service.TradeCycleResult, error)
	BotConfig(ctx context.Context) domain.BotConfig
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the market and trade loops. Call Start(ctx) once from main();
// cancel the context and call Wait to shut it down.
type Scheduler struct {
	cycles         Cycles
	marketInterval time.Duration
	logger         *slog.Logger
	wg             sync.WaitGroup
}

// NewScheduler creates a Scheduler. marketInterval must be positive.
func NewScheduler(cycles Cycles, marketInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cycles:         cycles,
		marketInterval: marketInterval,
		logger:         logger.With("component", "scheduler"),
	}
}

// Start launches both loops. It returns immediately; the loops run until ctx
// is cancelled. Each loop runs its first cycle right away.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.marketLoop(ctx)
	go s.tradeLoop(ctx)
	s.logger.Info("scheduler_started", "market_interval", s.marketInterval)
}

// Wait blocks until both loops have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// ──────────────────────────────────────────────────────────────────────────────
// marketLoop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) marketLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.marketInterval)
	defer ticker.Stop()

	for {
		s.runMarketCycle(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("marketLoop: shutting down")
			return
		case <-ticker.C:
		}
	}
}

// runMarketCycle is the body of marketLoop, split out so a panic in one cycle
// is recovered without ending the loop.
func (s *Scheduler) runMarketCycle(ctx context.Context) {
	defer s.recoverAndLog("marketLoop")
	if _, err := s.cycles.RunMarketCycle(ctx); err != nil {
		s.logger.Error("marketLoop: cycle failed", "err", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// tradeLoop
// ──────────────────────────────────────────────────────────────────────────────

// tradeLoop re-reads polling_interval after every cycle so a change made by
// an operator command applies from the next sleep on.
func (s *Scheduler) tradeLoop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tradeLoop: shutting down")
			return
		case <-timer.C:
		}

		s.runTradeCycle(ctx)
		timer.Reset(s.nextTradeWait(ctx))
	}
}

func (s *Scheduler) runTradeCycle(ctx context.Context) {
	defer s.recoverAndLog("tradeLoop")
	if _, err := s.cycles.RunTradeCycle(ctx); err != nil {
		s.logger.Error("tradeLoop: cycle failed", "err", err)
	}
}

func (s *Scheduler) nextTradeWait(ctx context.Context) (wait time.Duration) {
	wait = domain.DefaultBotConfig().PollingInterval
	defer s.recoverAndLog("tradeLoop")
	if d := s.cycles.BotConfig(ctx).PollingInterval; d > 0 {
		wait = d
	}
	return wait
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each cycle body to catch unexpected panics,
// log them, and keep the loop running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
