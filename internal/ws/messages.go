// Package ws pushes monitor alerts to live dashboard clients over WebSocket.
// messages.go defines the message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polywatch/monitor/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeNewMarket    MsgType = "new_market"
	MsgTypeLargeTrade   MsgType = "large_trade"
	MsgTypeCycleSummary MsgType = "cycle_summary"
	MsgTypeError        MsgType = "error"
	MsgTypeSubscribe    MsgType = "subscribe"
)

// isTopic reports whether t is a broadcast topic a client may subscribe to.
func isTopic(t MsgType) bool {
	switch t {
	case MsgTypeNewMarket, MsgTypeLargeTrade, MsgTypeCycleSummary:
		return true
	}
	return false
}

// SubscribeRequest is the only message clients send. An empty Topics list
// mutes every broadcast; clients that never subscribe receive everything.
type SubscribeRequest struct {
	Type   MsgType   `json:"type"`
	Topics []MsgType `json:"topics"`
}

// ──────────────────────────────────────────────────────────────────────────────
// NewMarketMessage: broadcast once per newly detected market.
// ──────────────────────────────────────────────────────────────────────────────

// NewMarketMessage carries the identity and outcomes of a new market.
type NewMarketMessage struct {
	Type          MsgType   `json:"type"`
	ConditionID   string    `json:"condition_id"`
	Slug          string    `json:"slug"`
	Question      string    `json:"question"`
	Outcomes      []string  `json:"outcomes"`
	OutcomePrices []string  `json:"outcome_prices"`
	URL           string    `json:"url"`
	Notified      bool      `json:"notified"` // chat send succeeded
	Timestamp     time.Time `json:"timestamp"`
}

// NewMarketMessageFrom builds the message for a stored market.
func NewMarketMessageFrom(m *domain.StoredMarket, notified bool, now time.Time) NewMarketMessage {
	return NewMarketMessage{
		Type:          MsgTypeNewMarket,
		ConditionID:   m.ConditionID,
		Slug:          m.Slug,
		Question:      m.Question,
		Outcomes:      m.Outcomes,
		OutcomePrices: m.OutcomePrices,
		URL:           domain.EventURL(m.Slug),
		Notified:      notified,
		Timestamp:     now,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// LargeTradeMessage: broadcast once per newly detected large trade.
// ──────────────────────────────────────────────────────────────────────────────

// LargeTradeMessage carries the trade and its notional value.
type LargeTradeMessage struct {
	Type        MsgType         `json:"type"`
	TradeID     string          `json:"trade_id"`
	ConditionID string          `json:"condition_id"`
	Side        domain.Side     `json:"side"`
	Size        decimal.Decimal `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Value       decimal.Decimal `json:"value"`
	TradedAt    time.Time       `json:"traded_at"`
	Notified    bool            `json:"notified"`
	Timestamp   time.Time       `json:"timestamp"`
}

// LargeTradeMessageFrom builds the message for a stored trade.
func LargeTradeMessageFrom(t *domain.StoredTrade, notified bool, now time.Time) LargeTradeMessage {
	return LargeTradeMessage{
		Type:        MsgTypeLargeTrade,
		TradeID:     t.TradeID,
		ConditionID: t.MarketConditionID,
		Side:        t.Side,
		Size:        t.Size,
		Price:       t.Price,
		Value:       t.Notional(),
		TradedAt:    t.Timestamp,
		Notified:    notified,
		Timestamp:   now,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CycleSummaryMessage: broadcast after every completed poll cycle.
// ──────────────────────────────────────────────────────────────────────────────

// CycleSummaryMessage reports the counters of one cycle.
type CycleSummaryMessage struct {
	Type          MsgType   `json:"type"`
	Cycle         string    `json:"cycle"`
	ItemsChecked  int       `json:"items_checked"`
	NewItemsFound int       `json:"new_items_found"`
	StoreFailures int       `json:"store_failures"`
	SendFailures  int       `json:"send_failures"`
	Timestamp     time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage: sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast) when its
// request cannot be applied.
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
