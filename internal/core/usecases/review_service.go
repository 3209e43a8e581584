package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
	"github.com/oredesk/permitflow/internal/pkg/workdays"
)

// ReviewService runs the per-item submit/review state machine shared by
// acceptance requirements and other documents, including the phase
// transitions when a whole checklist is accepted.
type ReviewService struct {
	apps     ports.ApplicationRepository
	items    ports.ReviewableItemRepository
	notifier ports.Notifier
	events   ports.EventPublisher
	storage  ports.FileStorage

	autoAcceptDays int
	revisionDays   int
	now            func() time.Time
}

// NewReviewService creates a new ReviewService. autoAcceptDays is the
// working-day window the admin has to review a submission before it
// auto-accepts; revisionDays is the window the applicant has to cure a
// rejection before the application is voided.
func NewReviewService(
	apps ports.ApplicationRepository,
	items ports.ReviewableItemRepository,
	notifier ports.Notifier,
	events ports.EventPublisher,
	storage ports.FileStorage,
	autoAcceptDays, revisionDays int,
) *ReviewService {
	if autoAcceptDays <= 0 {
		autoAcceptDays = 14
	}
	if revisionDays <= 0 {
		revisionDays = 14
	}
	return &ReviewService{
		apps:           apps,
		items:          items,
		notifier:       notifier,
		events:         events,
		storage:        storage,
		autoAcceptDays: autoAcceptDays,
		revisionDays:   revisionDays,
		now:            time.Now,
	}
}

// List returns an application's items of one kind, in checklist order.
func (s *ReviewService) List(ctx context.Context, actor domain.Actor, applicationID string, kind domain.ItemKind) ([]domain.ReviewableItem, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "application belongs to another applicant"}
	}
	return s.items.ListByApplication(ctx, applicationID, kind)
}

// SubmitItem records the applicant's submission for one requirement or
// document and starts the admin's auto-accept clock. A submission needs a
// file, structured data, or both.
func (s *ReviewService) SubmitItem(ctx context.Context, actor domain.Actor, itemID string, data []byte, fileName string, submitted map[string]any) (*domain.ReviewableItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, item.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "application belongs to another applicant"}
	}
	if item.IsVoided || app.Status == domain.AppVoided {
		return nil, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(domain.AppVoided), Attempted: "submit item",
		}
	}

	from := item.Status
	if from != domain.ItemPendingSubmission && from != domain.ItemRevisionRequired {
		return nil, &domain.StateConflictError{
			Entity: "item", ID: item.ID,
			CurrentStatus: string(from), Attempted: "submit",
		}
	}
	if len(data) == 0 && len(submitted) == 0 {
		return nil, &domain.ValidationError{Details: []string{"submission requires a file or form data"}}
	}

	now := s.now()
	if len(data) > 0 {
		if fileName == "" {
			fileName = item.ItemType + ".pdf"
		}
		url, err := s.storage.Store(ctx, data, fileName)
		if err != nil {
			return nil, fmt.Errorf("store submission: %w", err)
		}
		item.FileURL = url
		item.FileName = fileName
	}
	if len(submitted) > 0 {
		item.SubmittedData = submitted
	}

	deadline := workdays.Add(now, s.autoAcceptDays)
	item.Status = domain.ItemPendingReview
	item.SubmittedAt = &now
	item.SubmittedBy = actor.ID
	item.AutoAcceptDeadline = &deadline
	item.RevisionDeadline = nil
	item.ReviewedAt = nil
	item.ReviewedBy = ""
	item.AdminRemarks = ""
	item.UpdatedAt = now

	ok, err := s.items.UpdateIfStatus(ctx, item, from)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if !ok {
		return nil, &domain.StateConflictError{
			Entity: "item", ID: item.ID,
			CurrentStatus: string(from), Attempted: "submit",
		}
	}

	notify(ctx, s.notifier, domain.RecipientAdmins, domain.NotifyItemSubmitted,
		"Submission received",
		fmt.Sprintf("Application %s submitted %s for review.", app.ApplicationNo, item.ItemType),
		"/items/"+item.ID)
	return item, nil
}

// ReviewItem is the admin decision on a pending submission. Accepting the
// last outstanding item of a phase advances the application; rejecting
// starts the applicant's revision clock.
func (s *ReviewService) ReviewItem(ctx context.Context, actor domain.Actor, itemID, decision, remarks string) (*domain.ReviewableItem, error) {
	if !actor.IsAdmin() {
		return nil, &domain.AuthorizationError{Reason: "admin role required"}
	}
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.ItemPendingReview {
		return nil, &domain.StateConflictError{
			Entity: "item", ID: item.ID,
			CurrentStatus: string(item.Status), Attempted: "review",
		}
	}

	now := s.now()
	switch decision {
	case "accept":
		return s.acceptAndAdvance(ctx, item, actor.ID, false, remarks, now)
	case "reject":
		if remarks == "" {
			return nil, &domain.ValidationError{Details: []string{"rejection requires remarks"}}
		}
		return s.reject(ctx, item, actor.ID, remarks, now)
	default:
		return nil, &domain.ValidationError{Details: []string{fmt.Sprintf("decision must be accept or reject, got %q", decision)}}
	}
}

// acceptAndAdvance accepts one item and, if its whole checklist is now
// accepted, advances the application's phase. The sweeper reuses it for
// deadline auto-acceptance.
func (s *ReviewService) acceptAndAdvance(ctx context.Context, item *domain.ReviewableItem, actorID string, auto bool, remarks string, now time.Time) (*domain.ReviewableItem, error) {
	from := item.Status
	item.Status = domain.ItemAccepted
	item.AutoAcceptDeadline = nil
	item.RevisionDeadline = nil
	item.IsAutoAccepted = auto
	item.ReviewedAt = &now
	item.ReviewedBy = actorID
	if remarks == "" && auto {
		remarks = autoAcceptRemarks
	}
	item.AdminRemarks = remarks
	item.UpdatedAt = now

	ok, err := s.items.UpdateIfStatus(ctx, item, from)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if !ok {
		return nil, &domain.StateConflictError{
			Entity: "item", ID: item.ID,
			CurrentStatus: string(from), Attempted: "accept",
		}
	}

	app, err := s.apps.GetByID(ctx, item.ApplicationID)
	if err != nil {
		return nil, err
	}
	notify(ctx, s.notifier, app.ApplicantID, domain.NotifyItemReviewed,
		"Submission accepted",
		fmt.Sprintf("%s for application %s was accepted.", item.ItemType, app.ApplicationNo),
		"/items/"+item.ID)

	if err := s.maybeAdvancePhase(ctx, app, item.Kind, actorID, now); err != nil {
		return nil, err
	}
	return item, nil
}

// maybeAdvancePhase re-evaluates the sibling set after an accept and
// advances the application when the checklist is complete. Acceptance
// completion unlocks the other-documents checklist; other-documents
// completion hands the application to substantive review.
func (s *ReviewService) maybeAdvancePhase(ctx context.Context, app *domain.Application, kind domain.ItemKind, actorID string, now time.Time) error {
	siblings, err := s.items.ListByApplication(ctx, app.ID, kind)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if !domain.AllAccepted(siblings) {
		return nil
	}

	switch kind {
	case domain.KindAcceptanceRequirement:
		if app.Status != domain.AppAcceptanceInProgress {
			return nil
		}
		if err := s.initOtherDocuments(ctx, app, now); err != nil {
			return err
		}
		from := app.Status
		app.Status = domain.AppPendingOtherDocuments
		ok, err := transitionApplication(ctx, s.apps, s.events, app, from, actorID, "all acceptance requirements accepted", now)
		if err != nil || !ok {
			return err
		}
		notify(ctx, s.notifier, app.ApplicantID, domain.NotifyPhaseCompleted,
			"Acceptance phase complete",
			fmt.Sprintf("All acceptance requirements for application %s are accepted; other documents are now due.", app.ApplicationNo),
			"/applications/"+app.ID+"/items")

	case domain.KindOtherDocument:
		if app.Status != domain.AppPendingOtherDocuments {
			return nil
		}
		from := app.Status
		app.Status = domain.AppUnderReview
		ok, err := transitionApplication(ctx, s.apps, s.events, app, from, actorID, "all other documents accepted", now)
		if err != nil || !ok {
			return err
		}
		notify(ctx, s.notifier, app.ApplicantID, domain.NotifyPhaseCompleted,
			"Documents complete",
			fmt.Sprintf("All documents for application %s are accepted; the application is under substantive review.", app.ApplicationNo),
			"/applications/"+app.ID)
	}
	return nil
}

func (s *ReviewService) initOtherDocuments(ctx context.Context, app *domain.Application, now time.Time) error {
	existing, err := s.items.ListByApplication(ctx, app.ID, domain.KindOtherDocument)
	if err != nil {
		return fmt.Errorf("list other documents: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	types := domain.OtherDocumentChecklist()
	items := make([]domain.ReviewableItem, len(types))
	for i, t := range types {
		items[i] = domain.ReviewableItem{
			ID:            uuid.NewString(),
			ApplicationID: app.ID,
			Kind:          domain.KindOtherDocument,
			ItemType:      t,
			Order:         i + 1,
			Status:        domain.ItemPendingSubmission,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	if err := s.items.CreateBatch(ctx, items); err != nil {
		return fmt.Errorf("create other-document checklist: %w", err)
	}
	return nil
}

func (s *ReviewService) reject(ctx context.Context, item *domain.ReviewableItem, actorID, remarks string, now time.Time) (*domain.ReviewableItem, error) {
	deadline := workdays.Add(now, s.revisionDays)

	from := item.Status
	item.Status = domain.ItemRevisionRequired
	item.AutoAcceptDeadline = nil
	item.RevisionDeadline = &deadline
	item.ReviewedAt = &now
	item.ReviewedBy = actorID
	item.AdminRemarks = remarks
	item.UpdatedAt = now

	ok, err := s.items.UpdateIfStatus(ctx, item, from)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if !ok {
		return nil, &domain.StateConflictError{
			Entity: "item", ID: item.ID,
			CurrentStatus: string(from), Attempted: "reject",
		}
	}

	app, err := s.apps.GetByID(ctx, item.ApplicationID)
	if err != nil {
		return nil, err
	}
	notify(ctx, s.notifier, app.ApplicantID, domain.NotifyItemReviewed,
		"Revision required",
		fmt.Sprintf("%s for application %s needs revision: %s", item.ItemType, app.ApplicationNo, remarks),
		"/items/"+item.ID)
	return item, nil
}
