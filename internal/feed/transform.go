package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/polywatch/monitor/internal/domain"
)

// gammaEvent is the wire shape of a Gamma /events item.
type gammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Active  bool          `json:"active"`
	Closed  bool          `json:"closed"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket is the wire shape of a Gamma market. The outcome fields usually
// arrive as JSON arrays encoded inside strings; they stay raw so a record with
// an unexpected type cannot fail the whole response.
type gammaMarket struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	ConditionID   string          `json:"conditionId"`
	Slug          string          `json:"slug"`
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	ClobTokenIDs  json.RawMessage `json:"clobTokenIds"`
	Active        bool            `json:"active"`
	Closed        bool            `json:"closed"`
}

// clobTrade is the wire shape of a CLOB /data/trades item.
type clobTrade struct {
	ID           string `json:"id"`
	TakerOrderID string `json:"taker_order_id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Size         string `json:"size"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	MatchTime    string `json:"match_time"`
	LastUpdate   string `json:"last_update"`
	FeeRateBps   string `json:"fee_rate_bps"`
}

func (t clobTrade) toDomain() domain.Trade {
	return domain.Trade{
		ID:           t.ID,
		TakerOrderID: t.TakerOrderID,
		Market:       t.Market,
		AssetID:      t.AssetID,
		Side:         domain.Side(t.Side),
		Size:         t.Size,
		Price:        t.Price,
		Status:       t.Status,
		MatchTime:    t.MatchTime,
		LastUpdate:   t.LastUpdate,
		FeeRateBps:   t.FeeRateBps,
	}
}

func (c *Client) transformEvent(e gammaEvent) domain.MarketEvent {
	markets := make([]domain.Market, 0, len(e.Markets))
	for _, m := range e.Markets {
		markets = append(markets, c.transformMarket(m))
	}
	return domain.MarketEvent{
		ID:      e.ID,
		Slug:    e.Slug,
		Title:   e.Title,
		Active:  e.Active,
		Closed:  e.Closed,
		Markets: markets,
	}
}

// transformMarket decodes the nested outcome arrays. A malformed or
// length-mismatched set degrades to three empty arrays; it never fails the
// batch.
func (c *Client) transformMarket(m gammaMarket) domain.Market {
	out := domain.Market{
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		Question:    m.Question,
		Active:      m.Active,
	}

	outcomes, err1 := parseJSONArray(m.Outcomes)
	prices, err2 := parseJSONArray(m.OutcomePrices)
	tokens, err3 := parseJSONArray(m.ClobTokenIDs)

	out.Outcomes, out.OutcomePrices, out.ClobTokenIDs = outcomes, prices, tokens
	if err := firstErr(err1, err2, err3); err != nil || !out.HasConsistentOutcomes() {
		if err == nil {
			err = fmt.Errorf("%w: outcome arrays have lengths %d/%d/%d",
				domain.ErrMalformedRecord, len(outcomes), len(prices), len(tokens))
		}
		c.logger.Warn("malformed_market_outcomes", "condition_id", m.ConditionID, "slug", m.Slug, "err", err)
		out.ClearOutcomes()
	}
	return out
}

// parseJSONArray decodes a nested outcome field: either a string holding a
// JSON array of strings or a bare array. Missing, null and "" are an empty
// array; any other type is ErrMalformedRecord.
func parseJSONArray(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return []string{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
		}
		if s == "" {
			return []string{}, nil
		}
		return decodeStrings([]byte(s))
	case '[':
		return decodeStrings(raw)
	default:
		return []string{}, fmt.Errorf("%w: unexpected JSON value %.20s", domain.ErrMalformedRecord, raw)
	}
}

func decodeStrings(b []byte) ([]string, error) {
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return []string{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
