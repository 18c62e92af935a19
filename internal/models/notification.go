package models

import (
	"encoding/json"
	"time"
)

// NotificationAction is a call-to-action rendered with an in-app notice.
type NotificationAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notification is a persisted in-app notice for a staff user.
type Notification struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Title       string          `db:"title" json:"title"`
	Body        string          `db:"body" json:"body"`
	Actions     json.RawMessage `db:"actions" json:"actions"`
	RelatedType *string         `db:"related_type" json:"related_type,omitempty"`
	RelatedID   *string         `db:"related_id" json:"related_id,omitempty"`
	ReadAt      *time.Time      `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
