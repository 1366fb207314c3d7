// Package main is the entry point for the Polymarket monitor server. It wires
// the feed, the stores and the Telegram transport into the poll cycles and
// command controller, then serves the cron triggers, the webhook and the live
// alert stream.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/polywatch/monitor/internal/api"
	"github.com/polywatch/monitor/internal/app"
	"github.com/polywatch/monitor/internal/config"
	"github.com/polywatch/monitor/internal/dedup"
	"github.com/polywatch/monitor/internal/metrics"
	"github.com/polywatch/monitor/internal/scheduler"
	"github.com/polywatch/monitor/internal/service"
	"github.com/polywatch/monitor/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting polymarket monitor",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.DB.Driver,
		"bot_token", cfg.MaskedBotToken(),
		"cron_secret", cfg.MaskedCronSecret(),
	)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Stores ─────────────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store setup failed", "err", err)
		os.Exit(1)
	}
	defer stores.Close()

	// ── 4. Metrics + WebSocket hub ────────────────────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)

	hub := ws.NewHub([]byte(cfg.Dashboard.JWTSecret), cfg.Dashboard.AllowedOrigins, logger)
	hub.OnClientCount(m.SetAlertClients)
	go hub.Run(ctx)
	logger.Info("websocket hub started")

	// ── 5. Webhook replay guard ───────────────────────────────────────────────
	var guard service.UpdateGuard
	if cfg.Redis.URL != "" {
		rg, err := dedup.NewRedisGuard(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.UpdateTTL, logger)
		if err != nil {
			logger.Error("redis connection failed", "err", err)
			os.Exit(1)
		}
		defer rg.Close()
		guard = rg
		logger.Info("webhook replay guard: redis")
	} else {
		guard = dedup.NewMemoryGuard(cfg.Redis.UpdateTTL)
		logger.Info("webhook replay guard: in-memory")
	}

	// ── 6. Services ───────────────────────────────────────────────────────────
	svc := app.NewServices(cfg, stores, hub, m, logger)
	commands := service.NewCommandService(stores.Markets, stores.Trades, stores.Config, svc.Telegram,
		service.CommandOptions{
			Lookup:      svc.Feed,
			Guard:       guard,
			AdminChatID: cfg.Telegram.ChatID,
			Metrics:     m,
		}, logger)

	// ── 7. Scheduler ──────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Monitor.SchedulerEnabled {
		sched = scheduler.NewScheduler(svc.Monitor, cfg.Monitor.MarketPollInterval, logger)
		sched.Start(ctx)
	}

	// ── 8. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(ctx, api.RouterDeps{
		Cycles:   svc.Monitor,
		Updates:  commands,
		Hub:      hub,
		Gatherer: prometheus.DefaultGatherer,

		Markets:   stores.Markets,
		Trades:    stores.Trades,
		BotConfig: stores.Config,
		Stats:     stores.Stats,

		Cfg:    cfg,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 9. Start server ───────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	// ── 10. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	if sched != nil {
		sched.Wait()
	}
	logger.Info("server stopped cleanly")
}
