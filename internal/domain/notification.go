package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies an audit log entry.
type NotificationType string

const (
	NotificationNewMarket  NotificationType = "new_market"
	NotificationLargeTrade NotificationType = "large_trade"
)

// NotificationLogEntry is an append-only audit record of one send attempt.
// The pipeline never reads it back.
type NotificationLogEntry struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Content   string           `json:"content"`
	ChatID    string           `json:"chat_id"`
	Success   bool             `json:"success"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotificationLogEntry stamps a new audit record.
func NewNotificationLogEntry(typ NotificationType, content, chatID string, success bool, now time.Time) *NotificationLogEntry {
	return &NotificationLogEntry{
		ID:        uuid.New(),
		Type:      typ,
		Content:   content,
		ChatID:    chatID,
		Success:   success,
		CreatedAt: now,
	}
}
