// Package telegram sends bot messages through the Telegram Bot API and
// renders the bot's message texts.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/polywatch/monitor/internal/domain"
)

// ParseMode selects Telegram's text formatting.
type ParseMode string

const (
	ParseModeMarkdown ParseMode = tgbotapi.ModeMarkdown
	ParseModeNone     ParseMode = ""
)

// DefaultAPIURL is the public Bot API root.
const DefaultAPIURL = "https://api.telegram.org"

// Client sends messages through tgbotapi. Inbound updates arrive through the
// webhook route, so the bot never polls.
type Client struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	token  string
	logger *slog.Logger
}

// NewClient creates a Bot API client. Unlike tgbotapi.NewBotAPI it makes no
// getMe call, so it never touches the network at construction.
func NewClient(apiURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: timeout}
	bot := &tgbotapi.BotAPI{Token: token, Client: httpClient, Buffer: 100}
	bot.SetAPIEndpoint(strings.TrimRight(apiURL, "/") + "/bot%s/%s")

	return &Client{
		bot:    bot,
		http:   httpClient,
		token:  token,
		logger: logger.With("component", "telegram"),
	}
}

// ctxDoer binds one call's context to every request tgbotapi makes.
type ctxDoer struct {
	ctx  context.Context
	http *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.http.Do(req.WithContext(d.ctx))
}

// SendMessage posts text to chatID, a numeric chat id or an @channel name.
// Any failure is returned wrapped in domain.ErrTransport. It never retries.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, mode ParseMode) error {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = string(mode)
	msg.DisableWebPagePreview = true

	bot := *c.bot
	bot.Client = ctxDoer{ctx: ctx, http: c.http}

	if _, err := bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			c.logger.Warn("send_message_failed", "chat_id", chatID, "code", apiErr.Code, "description", apiErr.Message)
			return fmt.Errorf("%w: sendMessage %d: %s", domain.ErrTransport, apiErr.Code, apiErr.Message)
		}
		// The request URL carries the token.
		reason := c.redact(err.Error())
		c.logger.Warn("send_message_failed", "chat_id", chatID, "err", reason)
		return fmt.Errorf("%w: sendMessage: %s", domain.ErrTransport, reason)
	}
	return nil
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "<redacted>")
}
