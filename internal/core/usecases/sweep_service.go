package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
)

// systemActorID stamps transitions made by the deadline sweeper.
const systemActorID = "system"

// SweepService is the deadline sweeper. Each run makes two passes: expired
// admin-review windows auto-accept in the applicant's favor, and expired
// applicant-revision windows void the application. Every record is handled
// in its own write so one bad row cannot stall the rest of the sweep.
type SweepService struct {
	apps   ports.ApplicationRepository
	ledger ports.CoordinateHistoryRepository
	items  ports.ReviewableItemRepository

	coords   *CoordinateService
	reviews  *ReviewService
	notifier ports.Notifier
	events   ports.EventPublisher
	now      func() time.Time
}

// NewSweepService creates a new SweepService. It reuses the coordinate and
// review services so a deadline expiry takes exactly the same path as the
// equivalent admin decision.
func NewSweepService(
	apps ports.ApplicationRepository,
	ledger ports.CoordinateHistoryRepository,
	items ports.ReviewableItemRepository,
	coords *CoordinateService,
	reviews *ReviewService,
	notifier ports.Notifier,
	events ports.EventPublisher,
) *SweepService {
	return &SweepService{
		apps:     apps,
		ledger:   ledger,
		items:    items,
		coords:   coords,
		reviews:  reviews,
		notifier: notifier,
		events:   events,
		now:      time.Now,
	}
}

// RunDeadlineSweep processes every expired deadline as of now. Re-running
// with the same clock is a no-op: auto-accepted and voided records no
// longer match the expiry scans, and every transition is guarded on its
// source state.
func (s *SweepService) RunDeadlineSweep(ctx context.Context, now time.Time) (domain.SweepResult, error) {
	if now.IsZero() {
		now = s.now()
	}
	var res domain.SweepResult

	// Pass 1: expired admin-review windows resolve in the applicant's favor.
	expiredItems, err := s.items.ExpiredAutoAccepts(ctx, now)
	if err != nil {
		return res, fmt.Errorf("scan expired auto-accepts: %w", err)
	}
	for i := range expiredItems {
		item := expiredItems[i]
		if _, err := s.reviews.acceptAndAdvance(ctx, &item, systemActorID, true, "", now); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("auto-accept item %s: %v", item.ID, err))
			continue
		}
		res.AutoAccepted++
	}

	expiredReviews, err := s.apps.ExpiredCoordinateReviews(ctx, now)
	if err != nil {
		return res, fmt.Errorf("scan expired coordinate reviews: %w", err)
	}
	for i := range expiredReviews {
		app := expiredReviews[i]
		if _, err := s.coords.approve(ctx, &app, systemActorID, true, "", now); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("auto-approve coordinates %s: %v", app.ID, err))
			continue
		}
		res.AutoAccepted++
	}

	// Pass 2: expired applicant-revision windows void the application.
	expiredRevisions, err := s.items.ExpiredRevisions(ctx, now)
	if err != nil {
		return res, fmt.Errorf("scan expired item revisions: %w", err)
	}
	for i := range expiredRevisions {
		item := expiredRevisions[i]
		voided, err := s.voidApplication(ctx, item.ApplicationID,
			fmt.Sprintf("revision deadline expired for %s", item.ItemType), now)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("void application %s: %v", item.ApplicationID, err))
			continue
		}
		if voided {
			res.Voided++
		}
	}

	expiredCoordRevisions, err := s.apps.ExpiredCoordinateRevisions(ctx, now)
	if err != nil {
		return res, fmt.Errorf("scan expired coordinate revisions: %w", err)
	}
	for i := range expiredCoordRevisions {
		app := expiredCoordRevisions[i]
		voided, err := s.voidApplication(ctx, app.ID, "coordinate revision deadline expired", now)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("void application %s: %v", app.ID, err))
			continue
		}
		if voided {
			res.Voided++
		}
	}

	slog.Info("deadline sweep completed",
		"auto_accepted", res.AutoAccepted, "voided", res.Voided, "errors", len(res.Errors))
	if s.events != nil {
		if err := s.events.PublishSweepCompleted(ctx, res); err != nil {
			slog.Warn("publish sweep result", "error", err)
		}
	}
	return res, nil
}

// voidApplication terminates an application: the status flips to VOIDED,
// any approved boundary is released from the ledger, and open items are
// flagged voided with their deadlines cleared. It reports whether this
// call performed the transition, so a sweep over several expired items of
// one application counts that application once.
func (s *SweepService) voidApplication(ctx context.Context, applicationID, reason string, now time.Time) (bool, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return false, err
	}
	if app.Status == domain.AppVoided {
		return false, nil // another expired record already voided it this run
	}

	from := app.Status
	app.Status = domain.AppVoided
	app.CoordinateReviewDeadline = nil
	app.CoordinateRevisionDeadline = nil
	ok, err := transitionApplication(ctx, s.apps, s.events, app, from, systemActorID, reason, now)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, &domain.StateConflictError{
			Entity: "application", ID: app.ID,
			CurrentStatus: string(from), Attempted: "void",
		}
	}

	if err := s.ledger.Void(ctx, app.ID); err != nil {
		return false, fmt.Errorf("void ledger: %w", err)
	}

	for _, kind := range []domain.ItemKind{domain.KindAcceptanceRequirement, domain.KindOtherDocument} {
		items, err := s.items.ListByApplication(ctx, app.ID, kind)
		if err != nil {
			return false, fmt.Errorf("list items: %w", err)
		}
		for i := range items {
			item := items[i]
			if item.IsVoided {
				continue
			}
			item.IsVoided = true
			item.AutoAcceptDeadline = nil
			item.RevisionDeadline = nil
			item.UpdatedAt = now
			if err := s.items.Update(ctx, &item); err != nil {
				return false, fmt.Errorf("void item %s: %w", item.ID, err)
			}
		}
	}

	notify(ctx, s.notifier, app.ApplicantID, domain.NotifyApplicationVoided,
		"Application voided",
		fmt.Sprintf("Application %s was voided: %s.", app.ApplicationNo, reason),
		"/applications/"+app.ID)
	return true, nil
}
