package ports

import (
	"context"
	"time"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// ApplicationRepository persists applications and their audit trail.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	Update(ctx context.Context, app *domain.Application) error
	// UpdateIfStatus applies the update only while the stored row still has
	// the expected status; it reports whether the write happened. This is
	// the optimistic guard every transition relies on.
	UpdateIfStatus(ctx context.Context, app *domain.Application, expect domain.ApplicationStatus) (bool, error)
	ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int) ([]domain.Application, error)

	// Deadline-sweep scans.
	ExpiredCoordinateReviews(ctx context.Context, now time.Time) ([]domain.Application, error)
	ExpiredCoordinateRevisions(ctx context.Context, now time.Time) ([]domain.Application, error)

	AppendHistory(ctx context.Context, h *domain.StatusHistory) error
	History(ctx context.Context, applicationID string) ([]domain.StatusHistory, error)
}

// CoordinateHistoryRepository is the versioned ledger of approved boundaries.
type CoordinateHistoryRepository interface {
	// Approve marks any existing ACTIVE record for the application REPLACED
	// and inserts the new ACTIVE record in the same transaction, so the
	// one-ACTIVE-per-application invariant can never be observed broken.
	Approve(ctx context.Context, applicationID string, p domain.Polygon, approvedBy string, at time.Time) (*domain.CoordinateHistory, error)
	ActiveByApplication(ctx context.Context, applicationID string) (*domain.CoordinateHistory, error)
	// ActiveSet returns every ACTIVE boundary, optionally excluding the
	// caller's own application. This is the overlap detector's reference set.
	ActiveSet(ctx context.Context, excludeApplicationID string) ([]domain.ReferencePolygon, error)
	Void(ctx context.Context, applicationID string) error
	ListByApplication(ctx context.Context, applicationID string) ([]domain.CoordinateHistory, error)
}

// OverlapConsentRepository persists consent records, unique per
// (new application, affected application) pair.
type OverlapConsentRepository interface {
	Upsert(ctx context.Context, c *domain.OverlapConsent) error
	GetByID(ctx context.Context, id string) (*domain.OverlapConsent, error)
	GetByPair(ctx context.Context, newApplicationID, affectedApplicationID string) (*domain.OverlapConsent, error)
	ListByApplication(ctx context.Context, newApplicationID string) ([]domain.OverlapConsent, error)
	Update(ctx context.Context, c *domain.OverlapConsent) error
}

// ReviewableItemRepository persists acceptance requirements and other documents.
type ReviewableItemRepository interface {
	CreateBatch(ctx context.Context, items []domain.ReviewableItem) error
	GetByID(ctx context.Context, id string) (*domain.ReviewableItem, error)
	ListByApplication(ctx context.Context, applicationID string, kind domain.ItemKind) ([]domain.ReviewableItem, error)
	// UpdateIfStatus is the optimistic transition guard; see
	// ApplicationRepository.UpdateIfStatus.
	UpdateIfStatus(ctx context.Context, item *domain.ReviewableItem, expect domain.ItemStatus) (bool, error)
	Update(ctx context.Context, item *domain.ReviewableItem) error

	// Deadline-sweep scans; records already flagged auto-accepted or voided
	// are excluded so re-runs are no-ops.
	ExpiredAutoAccepts(ctx context.Context, now time.Time) ([]domain.ReviewableItem, error)
	ExpiredRevisions(ctx context.Context, now time.Time) ([]domain.ReviewableItem, error)
}

// NotificationRepository persists user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
}
