package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polywatch/monitor/internal/service"
)

// Cycles runs the poll cycles. Implemented by *service.MonitorService.
type Cycles interface {
	RunMarketCycle(ctx context.Context) (*service.MarketCycleResult, error)
	RunTradeCycle(ctx context.Context) (*service.TradeCycleResult, error)
}

// PollHandler exposes the poll cycles to an external timer.
type PollHandler struct {
	cycles Cycles
	logger *slog.Logger
}

// NewPollHandler creates a PollHandler.
func NewPollHandler(cycles Cycles, logger *slog.Logger) *PollHandler {
	return &PollHandler{cycles: cycles, logger: logger}
}

// Markets godoc
// POST /cron/markets
func (h *PollHandler) Markets(c *gin.Context) {
	res, err := h.cycles.RunMarketCycle(c.Request.Context())
	if err != nil {
		h.logger.Error("cron_markets_failed", "err", err)
		respondCycleError(c, http.StatusInternalServerError, err.Error(), time.Now())
		return
	}
	c.JSON(http.StatusOK, res)
}

// Trades godoc
// POST /cron/trades
func (h *PollHandler) Trades(c *gin.Context) {
	res, err := h.cycles.RunTradeCycle(c.Request.Context())
	if err != nil {
		h.logger.Error("cron_trades_failed", "err", err)
		respondCycleError(c, http.StatusInternalServerError, err.Error(), time.Now())
		return
	}
	c.JSON(http.StatusOK, res)
}
