package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polywatch/monitor/internal/api/handler"
	"github.com/polywatch/monitor/internal/api/middleware"
	"github.com/polywatch/monitor/internal/config"
	"github.com/polywatch/monitor/internal/service"
	"github.com/polywatch/monitor/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Cycles   handler.Cycles
	Updates  handler.UpdateHandler
	Hub      *ws.Hub
	Gatherer prometheus.Gatherer // nil disables /metrics

	// Read-only dashboard; nil Markets disables /api.
	Markets   service.MarketRepo
	Trades    service.TradeRepo
	BotConfig service.ConfigRepo
	Stats     service.NotificationStats

	Cfg    *config.Config
	Logger *slog.Logger
}

// SetupRouter creates the Gin engine with the cron triggers, the Telegram
// webhook, the read-only dashboard and the live alert stream. ctx bounds the rate
// limiter's background eviction.
func SetupRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Metrics ──────────────────────────────────────────────────────────────
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	rl := middleware.RateLimitMiddleware(ctx, deps.Cfg.Server.RateLimitRPS)

	// ── Cron triggers ────────────────────────────────────────────────────────
	if deps.Cycles != nil {
		pollH := handler.NewPollHandler(deps.Cycles, logger)
		cron := r.Group("/cron")
		cron.Use(rl, middleware.CronAuthMiddleware(deps.Cfg.Server.CronSecret))
		{
			cron.POST("/markets", pollH.Markets)
			cron.POST("/trades", pollH.Trades)
		}
	}

	// ── Telegram webhook ─────────────────────────────────────────────────────
	if deps.Updates != nil {
		webhookH := handler.NewWebhookHandler(deps.Updates, logger)
		r.POST("/telegram/webhook", rl, middleware.WebhookSecretMiddleware(deps.Cfg.Telegram.WebhookSecret), webhookH.Receive)
	}

	// ── Dashboard ────────────────────────────────────────────────────────────
	if deps.Markets != nil {
		var clients handler.ClientCounter
		if deps.Hub != nil {
			clients = deps.Hub
		}
		dashH := handler.NewDashboardHandler(deps.Markets, deps.Trades, deps.BotConfig, deps.Stats, clients, logger)
		dash := r.Group("/api")
		dash.Use(rl, middleware.DashboardJWTMiddleware([]byte(deps.Cfg.Dashboard.JWTSecret)))
		{
			dash.GET("/dashboard", dashH.Dashboard)
			dash.GET("/markets", dashH.ListMarkets)
			dash.GET("/trades", dashH.ListTrades)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// requestLogger logs one structured line per request. The query string is left
// out because the webhook secret may travel in it.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
		)
	}
}
