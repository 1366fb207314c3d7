package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polywatch/monitor/internal/telegram"
)

// UpdateHandler consumes one Bot API update. Implemented by
// *service.CommandService.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u *telegram.Update) error
}

// WebhookHandler receives Telegram updates. Every authenticated request is
// acknowledged with 200 so Telegram never redelivers; failures are only
// logged.
type WebhookHandler struct {
	updates UpdateHandler
	logger  *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(updates UpdateHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{updates: updates, logger: logger}
}

// Receive godoc
// POST /telegram/webhook
func (h *WebhookHandler) Receive(c *gin.Context) {
	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		h.logger.Warn("webhook_bad_update", "err", err)
		respondSuccess(c, http.StatusOK, gin.H{"handled": false})
		return
	}

	if err := h.updates.HandleUpdate(c.Request.Context(), &u); err != nil {
		h.logger.Error("webhook_update_failed", "update_id", u.ID(), "err", err)
		respondSuccess(c, http.StatusOK, gin.H{"handled": false})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"handled": true})
}
