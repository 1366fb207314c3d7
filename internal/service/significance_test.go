package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/repository/memory"
	"github.com/polywatch/monitor/internal/service"
)

func TestIsSignificant(t *testing.T) {
	tests := []struct {
		size string
		min  int64
		want bool
	}{
		{"1000", 1000, true},
		{"999.999", 1000, false},
		{"1000.01", 1000, true},
		{"500", 1000, false},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1e4", 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			assert.Equal(t, tt.want, service.IsSignificant(trade("t", "m", tt.size, "0.5"), tt.min))
		})
	}
}

func TestFilterSignificant_RaisingThresholdOnlyShrinks(t *testing.T) {
	trades := []domain.Trade{
		trade("a", "m", "10", "0.1"),
		trade("b", "m", "999", "0.1"),
		trade("c", "m", "1000", "0.1"),
		trade("d", "m", "25000", "0.1"),
		trade("e", "m", "oops", "0.1"),
	}

	ids := func(ts []domain.Trade) map[string]bool {
		out := map[string]bool{}
		for _, tr := range ts {
			out[tr.ID] = true
		}
		return out
	}

	prev := ids(service.FilterSignificant(trades, 0))
	for _, threshold := range []int64{1, 10, 999, 1000, 1001, 30000} {
		cur := ids(service.FilterSignificant(trades, threshold))
		for id := range cur {
			assert.True(t, prev[id], "trade %s significant at %d but not at a lower threshold", id, threshold)
		}
		prev = cur
	}
	assert.Empty(t, prev)
}

func TestFilterSignificant_KeepsOrder(t *testing.T) {
	trades := []domain.Trade{
		trade("x", "m", "5000", "0.1"),
		trade("y", "m", "1", "0.1"),
		trade("z", "m", "2000", "0.1"),
	}
	got := service.FilterSignificant(trades, 1000)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "z", got[1].ID)
}

func TestNovelty(t *testing.T) {
	ctx := context.Background()
	markets := memory.NewMarketRepository()
	trades := memory.NewTradeRepository()

	m := market("0x1", "A?")
	novel, err := service.IsNovelMarket(ctx, markets, m)
	require.NoError(t, err)
	assert.True(t, novel)

	require.NoError(t, markets.Insert(ctx, domain.NewStoredMarket(m, true, testNow)))
	m.Question = "Changed wording?"
	novel, err = service.IsNovelMarket(ctx, markets, m)
	require.NoError(t, err)
	assert.False(t, novel)

	tr := trade("t1", "0x1", "5000", "0.5")
	novel, err = service.IsNovelTrade(ctx, trades, tr)
	require.NoError(t, err)
	assert.True(t, novel)

	require.NoError(t, trades.Insert(ctx, domain.NewStoredTrade(tr, testNow)))
	novel, err = service.IsNovelTrade(ctx, trades, tr)
	require.NoError(t, err)
	assert.False(t, novel)

	broken := newCountingTradeRepo()
	broken.lookupErr = errStoreDown
	_, err = service.IsNovelTrade(ctx, broken, tr)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
}
