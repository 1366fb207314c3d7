package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/polywatch/monitor/internal/domain"
)

// setupTestDB starts a PostgreSQL container and applies the embedded
// migrations. Skipped under -short or when no container runtime is available.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("polywatch"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, dsn, 5, 2, time.Minute, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, RunMigrations(ctx, db, logger))
	// Second run must be a no-op.
	require.NoError(t, RunMigrations(ctx, db, logger))
	return db
}

func TestPostgresRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("markets", func(t *testing.T) {
		repo := NewMarketRepository(db)
		m := domain.NewStoredMarket(domain.Market{
			ConditionID:   "0xabc",
			Slug:          "will-it-rain",
			Question:      "Will it rain?",
			Outcomes:      []string{"Yes", "No"},
			OutcomePrices: []string{"0.6", "0.4"},
			ClobTokenIDs:  []string{"1", "2"},
			Active:        true,
		}, true, now)

		require.NoError(t, repo.Insert(ctx, m))
		assert.True(t, domain.IsConflict(repo.Insert(ctx, domain.NewStoredMarket(domain.Market{ConditionID: "0xabc"}, true, now))))

		got, err := repo.GetByConditionID(ctx, "0xabc")
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, []string{"Yes", "No"}, got.Outcomes)
		assert.Equal(t, []string{"1", "2"}, got.ClobTokenIDs)

		_, err = repo.GetByConditionID(ctx, "0xnone")
		assert.True(t, domain.IsNotFound(err))

		empty := domain.NewStoredMarket(domain.Market{ConditionID: "0xempty"}, true, now.Add(time.Second))
		require.NoError(t, repo.Insert(ctx, empty))
		got, err = repo.GetByConditionID(ctx, "0xempty")
		require.NoError(t, err)
		assert.Equal(t, []string{}, got.Outcomes)

		require.NoError(t, repo.SetMonitored(ctx, "0xabc", false))
		assert.True(t, domain.IsNotFound(repo.SetMonitored(ctx, "0xnone", true)))

		n, err := repo.CountMonitored(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		list, err := repo.ListRecentMonitored(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "0xempty", list[0].ConditionID)
	})

	t.Run("trades", func(t *testing.T) {
		repo := NewTradeRepository(db)
		mk := func(id string, ts time.Time) *domain.StoredTrade {
			st := domain.NewStoredTrade(domain.Trade{
				ID: id, Market: "0xabc", AssetID: "1", Side: domain.SideBuy, Size: "1500.5", Price: "0.42",
			}, now)
			st.Timestamp = ts
			return st
		}

		require.NoError(t, repo.Insert(ctx, mk("t-1", now.Add(-2*time.Hour))))
		require.NoError(t, repo.Insert(ctx, mk("t-2", now.Add(-time.Hour))))
		assert.True(t, domain.IsConflict(repo.Insert(ctx, mk("t-1", now))))

		got, err := repo.GetByTradeID(ctx, "t-1")
		require.NoError(t, err)
		assert.True(t, got.Size.Equal(decimal.RequireFromString("1500.5")))
		assert.True(t, got.Price.Equal(decimal.RequireFromString("0.42")))
		assert.True(t, got.Notified)

		n, err := repo.CountSince(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		list, err := repo.ListRecent(ctx, 5)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "t-2", list[0].TradeID)
	})

	t.Run("config", func(t *testing.T) {
		repo := NewConfigRepository(db)
		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultBotConfig(), domain.ParseBotConfig(all))

		require.NoError(t, repo.Set(ctx, domain.ConfigKeyMinBetSize, "2000"))
		require.NoError(t, repo.Set(ctx, "new_key", "v"))
		all, err = repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2000", all[domain.ConfigKeyMinBetSize])
		assert.Equal(t, "v", all["new_key"])
	})

	t.Run("notifications", func(t *testing.T) {
		repo := NewNotificationRepository(db)
		require.NoError(t, repo.Append(ctx, domain.NewNotificationLogEntry(domain.NotificationLargeTrade, "x", "-100", true, now)))
		require.NoError(t, repo.Append(ctx, domain.NewNotificationLogEntry(domain.NotificationLargeTrade, "y", "-100", false, now)))

		ok, failed, err := repo.CountByType(ctx, domain.NotificationLargeTrade)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ok)
		assert.Equal(t, int64(1), failed)
	})
}

func TestWithStatementTimeout(t *testing.T) {
	got, err := withStatementTimeout("postgres://u:p@localhost:5432/db?sslmode=disable", 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, got, "statement_timeout=5000")
	assert.Contains(t, got, "sslmode=disable")

	got, err = withStatementTimeout("host=localhost dbname=db", 250*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=db statement_timeout=250", got)

	got, err = withStatementTimeout("host=localhost", 0)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost", got)
}
