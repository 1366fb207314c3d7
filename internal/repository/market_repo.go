package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/polywatch/monitor/internal/domain"
)

// marketRow is the markets table shape.
type marketRow struct {
	ID            uuid.UUID      `db:"id"`
	ConditionID   string         `db:"condition_id"`
	Slug          string         `db:"slug"`
	Question      string         `db:"question"`
	Outcomes      pq.StringArray `db:"outcomes"`
	OutcomePrices pq.StringArray `db:"outcome_prices"`
	ClobTokenIDs  pq.StringArray `db:"clob_token_ids"`
	Active        bool           `db:"active"`
	Monitored     bool           `db:"monitored"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func newMarketRow(m *domain.StoredMarket) marketRow {
	return marketRow{
		ID:            m.ID,
		ConditionID:   m.ConditionID,
		Slug:          m.Slug,
		Question:      m.Question,
		Outcomes:      nonNil(m.Outcomes),
		OutcomePrices: nonNil(m.OutcomePrices),
		ClobTokenIDs:  nonNil(m.ClobTokenIDs),
		Active:        m.Active,
		Monitored:     m.Monitored,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r marketRow) toDomain() *domain.StoredMarket {
	return &domain.StoredMarket{
		ID:            r.ID,
		ConditionID:   r.ConditionID,
		Slug:          r.Slug,
		Question:      r.Question,
		Outcomes:      nonNil(r.Outcomes),
		OutcomePrices: nonNil(r.OutcomePrices),
		ClobTokenIDs:  nonNil(r.ClobTokenIDs),
		Active:        r.Active,
		Monitored:     r.Monitored,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const marketColumns = `id, condition_id, slug, question, outcomes, outcome_prices, clob_token_ids,
	active, monitored, created_at, updated_at`

// MarketRepository stores markets seen on the feed.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// GetByConditionID fetches a market by its identity key.
func (r *MarketRepository) GetByConditionID(ctx context.Context, conditionID string) (*domain.StoredMarket, error) {
	var row marketRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+marketColumns+` FROM markets WHERE condition_id = $1`, conditionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapErr("market_repo.GetByConditionID", err)
	}
	return row.toDomain(), nil
}

// Insert adds a market row. Returns ErrStoreConflict when the condition id is
// already stored.
func (r *MarketRepository) Insert(ctx context.Context, m *domain.StoredMarket) error {
	query := `
		INSERT INTO markets
			(id, condition_id, slug, question, outcomes, outcome_prices, clob_token_ids,
			 active, monitored, created_at, updated_at)
		VALUES
			(:id, :condition_id, :slug, :question, :outcomes, :outcome_prices, :clob_token_ids,
			 :active, :monitored, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, newMarketRow(m)); err != nil {
		return wrapErr("market_repo.Insert", err)
	}
	return nil
}

// SetMonitored flips the monitored flag. Returns ErrNotFound when no row
// matches.
func (r *MarketRepository) SetMonitored(ctx context.Context, conditionID string, monitored bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE markets SET monitored = $1, updated_at = now() WHERE condition_id = $2`,
		monitored, conditionID)
	if err != nil {
		return wrapErr("market_repo.SetMonitored", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountMonitored returns how many stored markets are monitored.
func (r *MarketRepository) CountMonitored(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM markets WHERE monitored = TRUE`); err != nil {
		return 0, wrapErr("market_repo.CountMonitored", err)
	}
	return n, nil
}

// ListRecentMonitored returns up to limit monitored markets, newest first.
func (r *MarketRepository) ListRecentMonitored(ctx context.Context, limit int) ([]*domain.StoredMarket, error) {
	var rows []marketRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+marketColumns+` FROM markets
		 WHERE monitored = TRUE
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, wrapErr("market_repo.ListRecentMonitored", err)
	}

	out := make([]*domain.StoredMarket, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
