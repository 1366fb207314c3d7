// Package domain defines the core entities shared by the feed client, the
// repositories and the monitoring services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Upstream shapes
// ──────────────────────────────────────────────────────────────────────────────

// MarketEvent is an upstream grouping of related markets. It is never
// persisted as a whole; only its child markets are stored.
type MarketEvent struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Active  bool     `json:"active"`
	Closed  bool     `json:"closed"`
	Markets []Market `json:"markets"`
}

// Market is a single tradable question. ConditionID is the only identity used
// for novelty checks; ID and Slug are informational.
type Market struct {
	ID            string   `json:"id"`
	ConditionID   string   `json:"condition_id"`
	Slug          string   `json:"slug"`
	Question      string   `json:"question"`
	Outcomes      []string `json:"outcomes"`
	OutcomePrices []string `json:"outcome_prices"`
	ClobTokenIDs  []string `json:"clob_token_ids"`
	Active        bool     `json:"active"`
}

// HasConsistentOutcomes reports whether the three parallel outcome arrays have
// the same length.
func (m *Market) HasConsistentOutcomes() bool {
	return len(m.Outcomes) == len(m.OutcomePrices) && len(m.Outcomes) == len(m.ClobTokenIDs)
}

// ClearOutcomes empties all three outcome arrays together.
func (m *Market) ClearOutcomes() {
	m.Outcomes = []string{}
	m.OutcomePrices = []string{}
	m.ClobTokenIDs = []string{}
}

// URL returns the public Polymarket page for the market.
func (m *Market) URL() string {
	return EventURL(m.Slug)
}

// EventURL builds the public Polymarket event link for a slug.
func EventURL(slug string) string {
	return "https://polymarket.com/event/" + slug
}

// ──────────────────────────────────────────────────────────────────────────────
// Persisted projection
// ──────────────────────────────────────────────────────────────────────────────

// StoredMarket is the persisted projection of a Market. It is created on first
// detection and afterwards only touched by operator commands.
type StoredMarket struct {
	ID            uuid.UUID `json:"id"`
	ConditionID   string    `json:"condition_id"`
	Slug          string    `json:"slug"`
	Question      string    `json:"question"`
	Outcomes      []string  `json:"outcomes"`
	OutcomePrices []string  `json:"outcome_prices"`
	ClobTokenIDs  []string  `json:"clob_token_ids"`
	Active        bool      `json:"active"`
	Monitored     bool      `json:"monitored"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewStoredMarket projects a freshly detected market into its stored form.
func NewStoredMarket(m Market, monitored bool, now time.Time) *StoredMarket {
	return &StoredMarket{
		ID:            uuid.New(),
		ConditionID:   m.ConditionID,
		Slug:          m.Slug,
		Question:      m.Question,
		Outcomes:      append([]string{}, m.Outcomes...),
		OutcomePrices: append([]string{}, m.OutcomePrices...),
		ClobTokenIDs:  append([]string{}, m.ClobTokenIDs...),
		Active:        m.Active,
		Monitored:     monitored,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
