package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polywatch/monitor/internal/api/middleware"
	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/service"
)

// ClientCounter reports connected live alert clients. Implemented by *ws.Hub.
type ClientCounter interface {
	ConnectedCount() int
}

// DashboardHandler serves the read-only /api endpoints.
type DashboardHandler struct {
	markets service.MarketRepo
	trades  service.TradeRepo
	config  service.ConfigRepo
	stats   service.NotificationStats
	clients ClientCounter // may be nil
	logger  *slog.Logger
	now     func() time.Time
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	markets service.MarketRepo,
	trades service.TradeRepo,
	config service.ConfigRepo,
	stats service.NotificationStats,
	clients ClientCounter,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		markets: markets,
		trades:  trades,
		config:  config,
		stats:   stats,
		clients: clients,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type notificationCounts struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Dashboard godoc
// GET /api/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()

	monitored, err := h.markets.CountMonitored(ctx)
	if err != nil {
		h.internalError(c, "count markets", err)
		return
	}
	recent, err := h.trades.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		h.internalError(c, "count trades", err)
		return
	}
	raw, err := h.config.GetAll(ctx)
	if err != nil {
		h.internalError(c, "read config", err)
		return
	}

	notifications := make(map[domain.NotificationType]notificationCounts, 2)
	for _, typ := range []domain.NotificationType{domain.NotificationNewMarket, domain.NotificationLargeTrade} {
		ok, failed, err := h.stats.CountByType(ctx, typ)
		if err != nil {
			h.internalError(c, "count notifications", err)
			return
		}
		notifications[typ] = notificationCounts{Succeeded: ok, Failed: failed}
	}

	clients := 0
	if h.clients != nil {
		clients = h.clients.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"monitored_markets": monitored,
		"large_trades_24h":  recent,
		"bot_config":        domain.ParseBotConfig(raw),
		"notifications":     notifications,
		"alert_clients":     clients,
		"timestamp":         now,
	})
}

// ListMarkets godoc
// GET /api/markets?limit=20
func (h *DashboardHandler) ListMarkets(c *gin.Context) {
	limit := parseLimit(c)
	markets, err := h.markets.ListRecentMonitored(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "list markets", err)
		return
	}
	respondList(c, markets, len(markets), limit)
}

// ListTrades godoc
// GET /api/trades?limit=20
func (h *DashboardHandler) ListTrades(c *gin.Context) {
	limit := parseLimit(c)
	trades, err := h.trades.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "list trades", err)
		return
	}
	respondList(c, trades, len(trades), limit)
}

func (h *DashboardHandler) internalError(c *gin.Context, action string, err error) {
	h.logger.Error("dashboard_query_failed", "action", action, "subject", middleware.GetSubject(c), "err", err)
	respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not "+action)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// parseLimit reads ?limit=. Missing or invalid values give 20; larger values
// are clamped to 100.
func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	switch {
	case err != nil || limit < 1:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
