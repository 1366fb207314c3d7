package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/polywatch/monitor/internal/domain"
)

// NotificationRepository appends to the notifications audit log.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append inserts one audit entry.
func (r *NotificationRepository) Append(ctx context.Context, e *domain.NotificationLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, content, chat_id, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.Type), e.Content, e.ChatID, e.Success, e.CreatedAt)
	if err != nil {
		return wrapErr("notification_repo.Append", err)
	}
	return nil
}

// CountByType returns how many entries of typ were logged, split by outcome.
func (r *NotificationRepository) CountByType(ctx context.Context, typ domain.NotificationType) (succeeded, failed int64, err error) {
	var row struct {
		Succeeded int64 `db:"succeeded"`
		Failed    int64 `db:"failed"`
	}
	err = r.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) FILTER (WHERE success)     AS succeeded,
			COUNT(*) FILTER (WHERE NOT success) AS failed
		FROM notifications WHERE type = $1`, string(typ))
	if err != nil {
		return 0, 0, wrapErr("notification_repo.CountByType", err)
	}
	return row.Succeeded, row.Failed, nil
}
