package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ConfigRepository reads and writes the bot_config key/value table.
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository creates a new ConfigRepository.
func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// GetAll returns every stored key with its raw value.
func (r *ConfigRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM bot_config`); err != nil {
		return nil, wrapErr("config_repo.GetAll", err)
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Set writes value under key, creating the row when missing. Last write wins.
func (r *ConfigRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bot_config (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return wrapErr("config_repo.Set", err)
	}
	return nil
}
