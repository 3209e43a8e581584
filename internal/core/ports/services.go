package ports

import (
	"context"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// Notifier delivers a notification to a user. Implementations persist the
// record and publish it to the event bus; delivery failures are best-effort
// and never abort the business transition that triggered them.
type Notifier interface {
	Notify(ctx context.Context, recipientID, ntype, title, message, link string) error
}

// EventPublisher publishes domain events to the message broker.
type EventPublisher interface {
	PublishApplicationStatus(ctx context.Context, applicationID string, from, to domain.ApplicationStatus) error
	PublishSweepCompleted(ctx context.Context, result domain.SweepResult) error
}

// FileStorage is the external binary-storage collaborator. The pipeline
// only ever handles the returned content-addressable URL and byte length.
type FileStorage interface {
	Store(ctx context.Context, data []byte, name string) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
