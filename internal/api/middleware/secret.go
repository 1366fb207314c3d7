package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polywatch/monitor/internal/domain"
)

// TelegramSecretHeader is the header Telegram sets when a webhook is
// registered with a secret_token.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ──────────────────────────────────────────────────────────────────────────────
// CronAuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// CronAuthMiddleware requires "Authorization: Bearer <secret>". An empty
// secret disables the check; config validation forbids that in production.
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || !secretEqual(strings.TrimPrefix(header, "Bearer "), secret) {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// WebhookSecretMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// WebhookSecretMiddleware accepts the secret either as the Telegram secret
// header or as a "secret" query parameter. An empty secret disables the check.
func WebhookSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(TelegramSecretHeader)
		if got == "" {
			got = c.Query("secret")
		}
		if !secretEqual(got, secret) {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   domain.ErrUnauthorized.Error(),
		"code":    "ERR_UNAUTHORIZED",
	})
}
