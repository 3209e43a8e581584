package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
	"github.com/oredesk/permitflow/internal/pkg/workdays"
)

// ConsentService handles upload and verification of overlap consent
// documents. Once every consent for an application is VERIFIED the
// coordinate review clock starts.
type ConsentService struct {
	apps     ports.ApplicationRepository
	ledger   ports.CoordinateHistoryRepository
	consents ports.OverlapConsentRepository
	notifier ports.Notifier
	events   ports.EventPublisher
	storage  ports.FileStorage

	reviewDays int
	now        func() time.Time
}

// NewConsentService creates a new ConsentService.
func NewConsentService(
	apps ports.ApplicationRepository,
	ledger ports.CoordinateHistoryRepository,
	consents ports.OverlapConsentRepository,
	notifier ports.Notifier,
	events ports.EventPublisher,
	storage ports.FileStorage,
	reviewDays int,
) *ConsentService {
	if reviewDays <= 0 {
		reviewDays = 14
	}
	return &ConsentService{
		apps:       apps,
		ledger:     ledger,
		consents:   consents,
		notifier:   notifier,
		events:     events,
		storage:    storage,
		reviewDays: reviewDays,
		now:        time.Now,
	}
}

// List returns the consent records attached to an application.
func (s *ConsentService) List(ctx context.Context, actor domain.Actor, applicationID string) ([]domain.OverlapConsent, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "application belongs to another applicant"}
	}
	return s.consents.ListByApplication(ctx, applicationID)
}

// Upload attaches a signed consent document to a consent record. Allowed
// from REQUIRED, UPLOADED (replacing the file), or REJECTED (curing a
// failed verification); any earlier verification outcome is cleared.
func (s *ConsentService) Upload(ctx context.Context, actor domain.Actor, consentID string, data []byte, fileName string) (*domain.OverlapConsent, error) {
	c, err := s.consents.GetByID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, c.NewApplicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "consent belongs to another applicant"}
	}

	switch c.ConsentStatus {
	case domain.ConsentRequired, domain.ConsentUploaded, domain.ConsentRejected:
	default:
		return nil, &domain.StateConflictError{
			Entity: "consent", ID: c.ID,
			CurrentStatus: string(c.ConsentStatus), Attempted: "upload document",
		}
	}

	if err := s.checkPrerequisites(ctx, app, c); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &domain.ValidationError{Details: []string{"consent document is empty"}}
	}
	if fileName == "" {
		fileName = "consent.pdf"
	}

	url, err := s.storage.Store(ctx, data, fileName)
	if err != nil {
		return nil, fmt.Errorf("store consent document: %w", err)
	}

	now := s.now()
	c.ConsentStatus = domain.ConsentUploaded
	c.ConsentFileURL = url
	c.ConsentFileName = fileName
	c.ConsentUploadedAt = &now
	c.ConsentUploadedBy = actor.ID
	c.ConsentVerifiedAt = nil
	c.ConsentVerifiedBy = ""
	c.VerificationRemarks = ""
	c.UpdatedAt = now
	if err := s.consents.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update consent: %w", err)
	}

	notify(ctx, s.notifier, domain.RecipientAdmins, domain.NotifyConsentUploaded,
		"Consent document uploaded",
		fmt.Sprintf("Application %s uploaded a consent covering overlap with %s.", app.ApplicationNo, c.AffectedApplicationNo),
		"/consents/"+c.ID)
	return c, nil
}

// checkPrerequisites enforces that both sides of the overlap are in a
// consentable state: the affected application still holds an ACTIVE
// approved boundary, and the new application's submission is still the one
// the overlap was computed against.
func (s *ConsentService) checkPrerequisites(ctx context.Context, app *domain.Application, c *domain.OverlapConsent) error {
	var missing []string

	active, err := s.ledger.ActiveByApplication(ctx, c.AffectedApplicationID)
	if err != nil || active == nil {
		missing = append(missing, fmt.Sprintf("affected application %s has no active approved boundary", c.AffectedApplicationNo))
	} else if active.ID != c.AffectedCoordinateHistoryID {
		missing = append(missing, fmt.Sprintf("affected application %s boundary changed since overlap was computed; resubmit coordinates", c.AffectedApplicationNo))
	}

	if len(app.PendingCoordinates) == 0 {
		missing = append(missing, "new application has no pending coordinate submission")
	}

	if len(missing) > 0 {
		return &domain.DependencyError{Missing: strings.Join(missing, "; ")}
	}
	return nil
}

// Verify is the admin decision on an uploaded consent document. Verifying
// the last outstanding consent moves the application into coordinate
// review and stamps the review deadline.
func (s *ConsentService) Verify(ctx context.Context, actor domain.Actor, consentID, decision, remarks string) (*domain.OverlapConsent, error) {
	if !actor.IsAdmin() {
		return nil, &domain.AuthorizationError{Reason: "admin role required"}
	}
	c, err := s.consents.GetByID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if c.ConsentStatus != domain.ConsentUploaded {
		return nil, &domain.StateConflictError{
			Entity: "consent", ID: c.ID,
			CurrentStatus: string(c.ConsentStatus), Attempted: "verify",
		}
	}

	now := s.now()
	switch decision {
	case "verify":
		c.ConsentStatus = domain.ConsentVerified
	case "reject":
		if remarks == "" {
			return nil, &domain.ValidationError{Details: []string{"rejection requires remarks"}}
		}
		c.ConsentStatus = domain.ConsentRejected
	default:
		return nil, &domain.ValidationError{Details: []string{fmt.Sprintf("decision must be verify or reject, got %q", decision)}}
	}
	c.ConsentVerifiedAt = &now
	c.ConsentVerifiedBy = actor.ID
	c.VerificationRemarks = remarks
	c.UpdatedAt = now
	if err := s.consents.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update consent: %w", err)
	}

	app, err := s.apps.GetByID(ctx, c.NewApplicationID)
	if err != nil {
		return nil, err
	}

	if c.ConsentStatus == domain.ConsentRejected {
		notify(ctx, s.notifier, app.ApplicantID, domain.NotifyConsentVerified,
			"Consent rejected",
			fmt.Sprintf("The consent covering overlap with %s was rejected: %s. Upload a corrected document.", c.AffectedApplicationNo, remarks),
			"/consents/"+c.ID)
		return c, nil
	}

	notify(ctx, s.notifier, app.ApplicantID, domain.NotifyConsentVerified,
		"Consent verified",
		fmt.Sprintf("The consent covering overlap with %s was verified.", c.AffectedApplicationNo),
		"/consents/"+c.ID)

	if err := s.maybeStartReview(ctx, app, actor.ID, now); err != nil {
		return nil, err
	}
	return c, nil
}

// maybeStartReview transitions the application out of
// OVERLAP_DETECTED_PENDING_CONSENT once no consent remains outstanding.
func (s *ConsentService) maybeStartReview(ctx context.Context, app *domain.Application, actorID string, now time.Time) error {
	if app.Status != domain.AppOverlapPendingConsent {
		return nil
	}
	all, err := s.consents.ListByApplication(ctx, app.ID)
	if err != nil {
		return fmt.Errorf("list consents: %w", err)
	}
	for _, c := range all {
		switch c.ConsentStatus {
		case domain.ConsentVerified, domain.ConsentNotRequired:
		default:
			return nil
		}
	}

	deadline := workdays.Add(now, s.reviewDays)
	from := app.Status
	app.Status = domain.AppPendingCoordApproval
	app.CoordinateReviewDeadline = &deadline

	ok, err := transitionApplication(ctx, s.apps, s.events, app, from, actorID, "all overlap consents verified", now)
	if err != nil {
		return err
	}
	if ok {
		notify(ctx, s.notifier, app.ApplicantID, domain.NotifyPhaseCompleted,
			"Consents complete",
			fmt.Sprintf("All consents for application %s are verified; the boundary is now under review.", app.ApplicationNo),
			"/applications/"+app.ID)
	}
	return nil
}
