// Package feed provides typed read access to the Polymarket Gamma (events,
// markets) and CLOB (trades) APIs.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polywatch/monitor/internal/domain"
)

const (
	// DefaultGammaURL is the Polymarket Gamma API endpoint for market data.
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	// DefaultClobURL is the Polymarket CLOB API endpoint for trades.
	DefaultClobURL = "https://clob.polymarket.com"
	// DefaultTimeout bounds every upstream request.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 512
)

// UpstreamError describes a failed feed request. It unwraps to
// domain.ErrUpstream.
type UpstreamError struct {
	Endpoint   string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed %s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("feed %s: %v", e.Endpoint, e.Err)
}

// Unwrap lets errors.Is match both the sentinel and the transport cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrUpstream}
	}
	return []error{domain.ErrUpstream, e.Err}
}

// TradeFilter narrows a trades query. Zero values are omitted.
type TradeFilter struct {
	Market string
	Before string
	Limit  int
}

// Client fetches events and trades from Polymarket.
type Client struct {
	gammaURL string
	clobURL  string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a feed client. Empty URLs and a zero timeout fall back to
// the public defaults.
func NewClient(gammaURL, clobURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if gammaURL == "" {
		gammaURL = DefaultGammaURL
	}
	if clobURL == "" {
		clobURL = DefaultClobURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		gammaURL: gammaURL,
		clobURL:  clobURL,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With("component", "feed"),
	}
}

// ListActiveEvents fetches up to limit active, non-closed events.
func (c *Client) ListActiveEvents(ctx context.Context, limit int) ([]domain.MarketEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrValidation, limit)
	}

	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))

	var events []gammaEvent
	if err := c.getJSON(ctx, c.gammaURL+"/events", q, &events); err != nil {
		return nil, err
	}

	out := make([]domain.MarketEvent, 0, len(events))
	for _, e := range events {
		out = append(out, c.transformEvent(e))
	}
	return out, nil
}

// ListRecentTrades fetches recent trades matching the filter.
func (c *Client) ListRecentTrades(ctx context.Context, f TradeFilter) ([]domain.Trade, error) {
	q := url.Values{}
	if f.Market != "" {
		q.Set("market", f.Market)
	}
	if f.Before != "" {
		q.Set("before", f.Before)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var trades []clobTrade
	if err := c.getJSON(ctx, c.clobURL+"/data/trades", q, &trades); err != nil {
		return nil, err
	}

	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		out = append(out, t.toDomain())
	}
	return out, nil
}

// GetMarketByConditionID looks up a single market. Returns domain.ErrNotFound
// when the upstream knows no such condition id.
func (c *Client) GetMarketByConditionID(ctx context.Context, conditionID string) (*domain.Market, error) {
	q := url.Values{}
	q.Set("condition_id", conditionID)

	var markets []gammaMarket
	if err := c.getJSON(ctx, c.gammaURL+"/markets", q, &markets); err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, domain.ErrNotFound
	}
	m := c.transformMarket(markets[0])
	return &m, nil
}

// getJSON performs a GET and decodes a JSON body into dst. Every failure is
// reported as an *UpstreamError.
func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, dst any) error {
	u := endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("upstream_bad_status", "endpoint", endpoint, "status", resp.StatusCode, "body", string(body))
		return &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
