package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the taker direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is a single matched order-book event as reported upstream. Size and
// Price keep their wire representation; numeric views are derived on demand.
type Trade struct {
	ID           string `json:"id"`
	TakerOrderID string `json:"taker_order_id"`
	Market       string `json:"market"` // condition id
	AssetID      string `json:"asset_id"`
	Side         Side   `json:"side"`
	Size         string `json:"size"`
	Price        string `json:"price"` // 0–1 probability
	Status       string `json:"status"`
	MatchTime    string `json:"match_time"`
	LastUpdate   string `json:"last_update"`
	FeeRateBps   string `json:"fee_rate_bps"`
}

// SizeDecimal parses Size.
func (t *Trade) SizeDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Size)
}

// PriceDecimal parses Price.
func (t *Trade) PriceDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(t.Price)
}

// Notional returns size × price. Unparseable fields count as zero.
func (t *Trade) Notional() decimal.Decimal {
	size, err := t.SizeDecimal()
	if err != nil {
		return decimal.Zero
	}
	price, err := t.PriceDecimal()
	if err != nil {
		return decimal.Zero
	}
	return size.Mul(price)
}

// MatchedAt parses MatchTime. The CLOB reports either RFC3339 strings or unix
// seconds; anything else yields the zero time.
func (t *Trade) MatchedAt() time.Time {
	return ParseTimestamp(t.MatchTime)
}

// ──────────────────────────────────────────────────────────────────────────────
// StoredTrade
// ──────────────────────────────────────────────────────────────────────────────

// StoredTrade is the persisted large-trade record. Notified is written as true
// in the same insert that precedes the send attempt.
type StoredTrade struct {
	ID                uuid.UUID       `json:"id"`
	TradeID           string          `json:"trade_id"`
	MarketConditionID string          `json:"market_condition_id"`
	AssetID           string          `json:"asset_id"`
	Side              Side            `json:"side"`
	Price             decimal.Decimal `json:"price"`
	Size              decimal.Decimal `json:"size"`
	Timestamp         time.Time       `json:"timestamp"`
	Notified          bool            `json:"notified"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Notional returns size × price.
func (s *StoredTrade) Notional() decimal.Decimal {
	return s.Size.Mul(s.Price)
}

// NewStoredTrade projects a significant trade into its stored form. The caller
// has already validated Size.
func NewStoredTrade(t Trade, now time.Time) *StoredTrade {
	size, _ := t.SizeDecimal()
	price, _ := t.PriceDecimal()
	ts := t.MatchedAt()
	if ts.IsZero() {
		ts = now
	}
	return &StoredTrade{
		ID:                uuid.New(),
		TradeID:           t.ID,
		MarketConditionID: t.Market,
		AssetID:           t.AssetID,
		Side:              t.Side,
		Price:             price,
		Size:              size,
		Timestamp:         ts.UTC(),
		Notified:          true,
		CreatedAt:         now,
	}
}
