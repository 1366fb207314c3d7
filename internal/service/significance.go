package service

import (
	"github.com/shopspring/decimal"

	"github.com/polywatch/monitor/internal/domain"
)

// IsSignificant reports whether the trade's size is at or above minBetSize.
// The comparison is on size, not notional value. An unparseable size is never
// significant.
func IsSignificant(t domain.Trade, minBetSize int64) bool {
	size, err := t.SizeDecimal()
	if err != nil {
		return false
	}
	return size.GreaterThanOrEqual(decimal.NewFromInt(minBetSize))
}

// FilterSignificant returns the significant trades in their original order.
func FilterSignificant(trades []domain.Trade, minBetSize int64) []domain.Trade {
	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if IsSignificant(t, minBetSize) {
			out = append(out, t)
		}
	}
	return out
}
