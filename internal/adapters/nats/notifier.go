package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
)

// Notifier implements ports.Notifier: the notification is persisted first,
// then published for live delivery. A publish failure is not returned;
// the stored row is the source of truth and the relay only accelerates it.
type Notifier struct {
	repo ports.NotificationRepository
	pub  *Publisher
}

// NewNotifier creates a new Notifier.
func NewNotifier(repo ports.NotificationRepository, pub *Publisher) *Notifier {
	return &Notifier{repo: repo, pub: pub}
}

// Notify stores and publishes one notification.
func (n *Notifier) Notify(ctx context.Context, recipientID, ntype, title, message, link string) error {
	rec := &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        ntype,
		Title:       title,
		Message:     message,
		Link:        link,
		CreatedAt:   time.Now().UTC(),
	}
	if err := n.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	if n.pub != nil {
		_ = n.pub.PublishNotification(ctx, rec)
	}
	return nil
}
