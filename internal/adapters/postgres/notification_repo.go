package postgres

import (
	"context"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// NotificationRepo implements ports.NotificationRepository with pgx.
type NotificationRepo struct {
	db *DB
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create inserts a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, link, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Link, n.CreatedAt)
	return err
}

// ListByRecipient returns a recipient's notifications, newest first.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, recipient_id, type, title, message, COALESCE(link, ''), read_at, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.Link, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead stamps the read time if not already read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read_at = now() WHERE id = $1 AND read_at IS NULL`, id)
	return err
}
