package service

import (
	"context"
	"fmt"

	"github.com/polywatch/monitor/internal/domain"
)

// IsNovelMarket reports whether the market's condition id is absent from the
// store. A present market is never refreshed, even when its fields changed.
func IsNovelMarket(ctx context.Context, repo MarketRepo, m domain.Market) (bool, error) {
	_, err := repo.GetByConditionID(ctx, m.ConditionID)
	switch {
	case err == nil:
		return false, nil
	case domain.IsNotFound(err):
		return true, nil
	default:
		return false, fmt.Errorf("novelty: market %s: %w", m.ConditionID, asStoreFailure(err))
	}
}

// IsNovelTrade reports whether the trade id is absent from the store. Callers
// apply the significance filter first so small trades are never looked up.
func IsNovelTrade(ctx context.Context, repo TradeRepo, t domain.Trade) (bool, error) {
	_, err := repo.GetByTradeID(ctx, t.ID)
	switch {
	case err == nil:
		return false, nil
	case domain.IsNotFound(err):
		return true, nil
	default:
		return false, fmt.Errorf("novelty: trade %s: %w", t.ID, asStoreFailure(err))
	}
}
