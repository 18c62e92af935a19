package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-api/internal/models"
)

const notificationColumns = `id, user_id, title, body, actions, related_type, related_id, read_at, created_at`

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch stores every notification in one transaction.
func (r *NotificationRepository) CreateBatch(ctx context.Context, items []models.Notification) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO notifications (` + notificationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].CreatedAt = now
		actions := string(items[i].Actions)
		if actions == "" {
			actions = "[]"
		}
		if _, err = tx.ExecContext(ctx, query, items[i].ID, items[i].UserID, items[i].Title, items[i].Body, actions, items[i].RelatedType, items[i].RelatedID, now); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit notifications: %w", err)
	}
	return nil
}

// ListByUser returns the newest notifications for a user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead stamps read_at on a notification owned by userID. It reports
// whether a row was updated.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	const query = `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}
