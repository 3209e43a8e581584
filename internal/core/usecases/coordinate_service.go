package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
	"github.com/oredesk/permitflow/internal/pkg/geospatial"
	"github.com/oredesk/permitflow/internal/pkg/workdays"
)

// activeSetCacheKey caches the ACTIVE reference-polygon set; every ledger
// write invalidates it.
const activeSetCacheKey = "coordinates:active_set"

// autoAcceptRemarks is the fixed remark stamped by the deadline sweeper.
const autoAcceptRemarks = "auto-accepted due to deadline expiration"

// SubmitCoordinatesResult reports the outcome of a boundary submission.
type SubmitCoordinatesResult struct {
	Application  *domain.Application    `json:"application"`
	AreaSqMeters float64                `json:"area_sq_meters"`
	Overlaps     []domain.OverlapResult `json:"overlaps,omitempty"`
}

// CoordinateService drives boundary submission, overlap detection, and the
// admin coordinate review that feeds the approved-polygon ledger.
type CoordinateService struct {
	apps     ports.ApplicationRepository
	ledger   ports.CoordinateHistoryRepository
	consents ports.OverlapConsentRepository
	items    ports.ReviewableItemRepository
	notifier ports.Notifier
	events   ports.EventPublisher
	cache    ports.CacheService

	reviewDays   int
	revisionDays int
	now          func() time.Time
}

// NewCoordinateService creates a new CoordinateService. reviewDays and
// revisionDays are the working-day deadlines stamped on admin review and
// requested revisions.
func NewCoordinateService(
	apps ports.ApplicationRepository,
	ledger ports.CoordinateHistoryRepository,
	consents ports.OverlapConsentRepository,
	items ports.ReviewableItemRepository,
	notifier ports.Notifier,
	events ports.EventPublisher,
	cache ports.CacheService,
	reviewDays, revisionDays int,
) *CoordinateService {
	if reviewDays <= 0 {
		reviewDays = 14
	}
	if revisionDays <= 0 {
		revisionDays = 14
	}
	return &CoordinateService{
		apps:         apps,
		ledger:       ledger,
		consents:     consents,
		items:        items,
		notifier:     notifier,
		events:       events,
		cache:        cache,
		reviewDays:   reviewDays,
		revisionDays: revisionDays,
		now:          time.Now,
	}
}

// SubmitCoordinates validates a submitted boundary, detects overlaps
// against all ACTIVE approved boundaries, and moves the application into
// coordinate review. With overlaps the application waits on consents
// first; without them the admin review deadline starts immediately.
func (s *CoordinateService) SubmitCoordinates(ctx context.Context, actor domain.Actor, applicationID string, raw json.RawMessage) (*SubmitCoordinatesResult, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "application belongs to another applicant"}
	}

	from := app.Status
	if from != domain.AppDraft && from != domain.AppCoordRevisionRequired {
		return nil, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(from), Attempted: "submit coordinates",
		}
	}

	poly, err := geospatial.NormalizePolygon(raw)
	if err != nil {
		return nil, err
	}
	if errs := geospatial.ValidateGeometry(poly); len(errs) > 0 {
		return nil, &domain.ValidationError{Details: errs}
	}

	refs, err := s.activeRefs(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("load reference set: %w", err)
	}
	overlaps := geospatial.DetectOverlaps(poly, refs)

	now := s.now()
	for _, ov := range overlaps {
		if err := s.recordOverlap(ctx, app, ov, now); err != nil {
			return nil, err
		}
	}
	if err := s.releaseStaleConsents(ctx, app.ID, overlaps, now); err != nil {
		return nil, err
	}

	app.PendingCoordinates = poly
	app.CoordinatesSubmittedAt = &now
	app.CoordinateRevisionDeadline = nil
	if len(overlaps) > 0 {
		// Consents must all be verified before the review clock starts.
		app.Status = domain.AppOverlapPendingConsent
		app.CoordinateReviewDeadline = nil
	} else {
		deadline := workdays.Add(now, s.reviewDays)
		app.Status = domain.AppPendingCoordApproval
		app.CoordinateReviewDeadline = &deadline
	}

	ok, err := transitionApplication(ctx, s.apps, s.events, app, from, actor.ID, "coordinates submitted", now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(from), Attempted: "submit coordinates",
		}
	}

	notify(ctx, s.notifier, domain.RecipientAdmins, domain.NotifyCoordinateSubmitted,
		"Coordinates submitted",
		fmt.Sprintf("Application %s submitted boundary coordinates (%d points).", app.ApplicationNo, len(poly)),
		"/applications/"+app.ID)
	if len(overlaps) > 0 {
		notify(ctx, s.notifier, app.ApplicantID, domain.NotifyOverlapDetected,
			"Overlap detected",
			fmt.Sprintf("Your boundary overlaps %d approved area(s); consent from each affected permit holder is required.", len(overlaps)),
			"/applications/"+app.ID+"/consents")
	}

	return &SubmitCoordinatesResult{
		Application:  app,
		AreaSqMeters: geospatial.AreaSqMeters(poly),
		Overlaps:     overlaps,
	}, nil
}

// recordOverlap creates or refreshes the consent row for one detected
// overlap. A fresh submission always resets the pair to REQUIRED: consent
// applies to a specific boundary, so a changed polygon voids any earlier
// upload or verification.
func (s *CoordinateService) recordOverlap(ctx context.Context, app *domain.Application, ov domain.OverlapResult, now time.Time) error {
	existing, err := s.consents.GetByPair(ctx, app.ID, ov.AffectedApplicationID)
	if err != nil {
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("lookup consent: %w", err)
		}
	}

	c := &domain.OverlapConsent{
		ID:                          uuid.NewString(),
		NewApplicationID:            app.ID,
		AffectedApplicationID:       ov.AffectedApplicationID,
		AffectedApplicationNo:       ov.AffectedApplicationNo,
		AffectedCoordinateHistoryID: ov.AffectedCoordinateHistoryID,
		OverlapPercentage:           ov.OverlapPercentage,
		OverlapAreaSqMeters:         ov.OverlapAreaSqMeters,
		ConsentStatus:               domain.ConsentRequired,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	if existing != nil {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	return s.consents.Upsert(ctx, c)
}

// releaseStaleConsents marks consent rows whose pair is absent from the
// current detection as NOT_REQUIRED. A resubmitted boundary that no longer
// touches an earlier neighbor releases that neighbor's consent, so the
// approval gate only counts pairs tied to the pending polygon.
func (s *CoordinateService) releaseStaleConsents(ctx context.Context, applicationID string, overlaps []domain.OverlapResult, now time.Time) error {
	existing, err := s.consents.ListByApplication(ctx, applicationID)
	if err != nil {
		return fmt.Errorf("list consents: %w", err)
	}
	current := make(map[string]bool, len(overlaps))
	for _, ov := range overlaps {
		current[ov.AffectedApplicationID] = true
	}
	for _, c := range existing {
		if current[c.AffectedApplicationID] || c.ConsentStatus == domain.ConsentNotRequired {
			continue
		}
		c := c
		c.ConsentStatus = domain.ConsentNotRequired
		c.UpdatedAt = now
		if err := s.consents.Update(ctx, &c); err != nil {
			return fmt.Errorf("release consent %s: %w", c.ID, err)
		}
	}
	return nil
}

// ReviewCoordinates is the admin decision on a pending boundary. Approval
// requires every consent to be VERIFIED and promotes the pending polygon
// into the ledger; rejection starts the revision clock.
func (s *CoordinateService) ReviewCoordinates(ctx context.Context, actor domain.Actor, applicationID, decision, remarks string) (*domain.Application, error) {
	if !actor.IsAdmin() {
		return nil, &domain.AuthorizationError{Reason: "admin role required"}
	}
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	from := app.Status
	if from != domain.AppPendingCoordApproval && from != domain.AppOverlapPendingConsent {
		return nil, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(from), Attempted: "review coordinates",
		}
	}

	switch decision {
	case "approve":
		return s.approve(ctx, app, actor.ID, false, remarks, s.now())
	case "reject":
		return s.reject(ctx, app, actor.ID, remarks, s.now())
	default:
		return nil, &domain.ValidationError{Details: []string{fmt.Sprintf("decision must be approve or reject, got %q", decision)}}
	}
}

// approve promotes the pending polygon into the ledger and opens the
// acceptance phase. The sweeper reuses it for deadline auto-approval.
func (s *CoordinateService) approve(ctx context.Context, app *domain.Application, actorID string, auto bool, remarks string, now time.Time) (*domain.Application, error) {
	if len(app.PendingCoordinates) == 0 {
		return nil, &domain.DependencyError{Missing: "no pending coordinate submission to approve"}
	}

	consents, err := s.consents.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	var pending, rejected int
	for _, c := range consents {
		switch c.ConsentStatus {
		case domain.ConsentVerified, domain.ConsentNotRequired:
		case domain.ConsentRejected:
			rejected++
		default:
			pending++
		}
	}
	if pending+rejected > 0 {
		return nil, &domain.DependencyError{
			Missing: fmt.Sprintf("all overlap consents must be verified (%d pending, %d rejected)", pending, rejected),
		}
	}

	hist, err := s.ledger.Approve(ctx, app.ID, app.PendingCoordinates, actorID, now)
	if err != nil {
		return nil, fmt.Errorf("ledger approve: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, activeSetCacheKey)
	}

	// Backfill the consent rows with the ledger record they authorized.
	for _, c := range consents {
		c := c
		c.NewCoordinateHistoryID = hist.ID
		c.UpdatedAt = now
		if err := s.consents.Update(ctx, &c); err != nil {
			return nil, fmt.Errorf("backfill consent %s: %w", c.ID, err)
		}
	}

	from := app.Status
	app.Status = domain.AppAcceptanceInProgress
	app.CoordinateApprovedAt = &now
	app.CoordinateAutoApproved = auto
	app.CoordinateReviewDeadline = nil
	app.CoordinateRevisionDeadline = nil
	app.PendingCoordinates = nil

	if remarks == "" && auto {
		remarks = autoAcceptRemarks
	}
	ok, err := transitionApplication(ctx, s.apps, s.events, app, from, actorID, remarks, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(from), Attempted: "approve coordinates",
		}
	}

	if err := s.initAcceptanceChecklist(ctx, app, now); err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, app.ApplicantID, domain.NotifyCoordinateReviewed,
		"Coordinates approved",
		fmt.Sprintf("Application %s boundary approved; acceptance requirements are now open.", app.ApplicationNo),
		"/applications/"+app.ID+"/items")
	return app, nil
}

func (s *CoordinateService) reject(ctx context.Context, app *domain.Application, actorID, remarks string, now time.Time) (*domain.Application, error) {
	deadline := workdays.Add(now, s.revisionDays)

	from := app.Status
	app.Status = domain.AppCoordRevisionRequired
	app.CoordinateReviewDeadline = nil
	app.CoordinateRevisionDeadline = &deadline

	ok, err := transitionApplication(ctx, s.apps, s.events, app, from, actorID, remarks, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(from), Attempted: "reject coordinates",
		}
	}

	notify(ctx, s.notifier, app.ApplicantID, domain.NotifyCoordinateReviewed,
		"Coordinate revision required",
		fmt.Sprintf("Application %s boundary needs revision within %d working days: %s",
			app.ApplicationNo, workdays.Between(now, deadline), remarks),
		"/applications/"+app.ID)
	return app, nil
}

// initAcceptanceChecklist bulk-creates the acceptance requirements for the
// permit type when the acceptance phase opens.
func (s *CoordinateService) initAcceptanceChecklist(ctx context.Context, app *domain.Application, now time.Time) error {
	existing, err := s.items.ListByApplication(ctx, app.ID, domain.KindAcceptanceRequirement)
	if err != nil {
		return fmt.Errorf("list requirements: %w", err)
	}
	if len(existing) > 0 {
		return nil // re-approval after revision keeps the original checklist
	}

	types := domain.AcceptanceChecklist(app.PermitType)
	items := make([]domain.ReviewableItem, len(types))
	for i, t := range types {
		items[i] = domain.ReviewableItem{
			ID:            uuid.NewString(),
			ApplicationID: app.ID,
			Kind:          domain.KindAcceptanceRequirement,
			ItemType:      t,
			Order:         i + 1,
			Status:        domain.ItemPendingSubmission,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	if err := s.items.CreateBatch(ctx, items); err != nil {
		return fmt.Errorf("create acceptance checklist: %w", err)
	}
	return nil
}

// activeRefs returns the ACTIVE reference set, read through the cache.
func (s *CoordinateService) activeRefs(ctx context.Context, excludeApplicationID string) ([]domain.ReferencePolygon, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, activeSetCacheKey); err == nil {
			var refs []domain.ReferencePolygon
			if err := json.Unmarshal(data, &refs); err == nil {
				return filterRefs(refs, excludeApplicationID), nil
			}
		}
	}

	refs, err := s.ledger.ActiveSet(ctx, "")
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(refs); err == nil {
			_ = s.cache.Set(ctx, activeSetCacheKey, data, 300)
		}
	}
	return filterRefs(refs, excludeApplicationID), nil
}

func filterRefs(refs []domain.ReferencePolygon, excludeApplicationID string) []domain.ReferencePolygon {
	if excludeApplicationID == "" {
		return refs
	}
	out := refs[:0:0]
	for _, r := range refs {
		if r.ApplicationID != excludeApplicationID {
			out = append(out, r)
		}
	}
	return out
}

// CoordinateHistory returns the ledger rows for an application.
func (s *CoordinateService) CoordinateHistory(ctx context.Context, actor domain.Actor, applicationID string) ([]domain.CoordinateHistory, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "application belongs to another applicant"}
	}
	return s.ledger.ListByApplication(ctx, applicationID)
}
