package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/polywatch/monitor/internal/domain"
)

type tradeRow struct {
	ID                uuid.UUID       `db:"id"`
	TradeID           string          `db:"trade_id"`
	MarketConditionID string          `db:"market_condition_id"`
	AssetID           string          `db:"asset_id"`
	Side              string          `db:"side"`
	Price             decimal.Decimal `db:"price"`
	Size              decimal.Decimal `db:"size"`
	Timestamp         time.Time       `db:"timestamp"`
	Notified          bool            `db:"notified"`
	CreatedAt         time.Time       `db:"created_at"`
}

func (r tradeRow) toDomain() *domain.StoredTrade {
	return &domain.StoredTrade{
		ID:                r.ID,
		TradeID:           r.TradeID,
		MarketConditionID: r.MarketConditionID,
		AssetID:           r.AssetID,
		Side:              domain.Side(r.Side),
		Price:             r.Price,
		Size:              r.Size,
		Timestamp:         r.Timestamp.UTC(),
		Notified:          r.Notified,
		CreatedAt:         r.CreatedAt,
	}
}

const tradeColumns = `id, trade_id, market_condition_id, asset_id, side, price, size,
	"timestamp", notified, created_at`

// TradeRepository stores large trades.
type TradeRepository struct {
	db *sqlx.DB
}

// NewTradeRepository creates a new TradeRepository.
func NewTradeRepository(db *sqlx.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// GetByTradeID fetches a stored trade by the upstream trade id.
func (r *TradeRepository) GetByTradeID(ctx context.Context, tradeID string) (*domain.StoredTrade, error) {
	var row tradeRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+tradeColumns+` FROM large_trades WHERE trade_id = $1`, tradeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapErr("trade_repo.GetByTradeID", err)
	}
	return row.toDomain(), nil
}

// Insert adds a large trade row. Returns ErrStoreConflict when the trade id is
// already stored.
func (r *TradeRepository) Insert(ctx context.Context, t *domain.StoredTrade) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO large_trades
			(id, trade_id, market_condition_id, asset_id, side, price, size, "timestamp", notified, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.TradeID, t.MarketConditionID, t.AssetID, string(t.Side),
		t.Price, t.Size, t.Timestamp, t.Notified, t.CreatedAt)
	if err != nil {
		return wrapErr("trade_repo.Insert", err)
	}
	return nil
}

// CountSince returns how many large trades were stored at or after since.
func (r *TradeRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM large_trades WHERE created_at >= $1`, since); err != nil {
		return 0, wrapErr("trade_repo.CountSince", err)
	}
	return n, nil
}

// ListRecent returns up to limit trades ordered by trade time, newest first.
func (r *TradeRepository) ListRecent(ctx context.Context, limit int) ([]*domain.StoredTrade, error) {
	var rows []tradeRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+tradeColumns+` FROM large_trades
		 ORDER BY "timestamp" DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, wrapErr("trade_repo.ListRecent", err)
	}

	out := make([]*domain.StoredTrade, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
