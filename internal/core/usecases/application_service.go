package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
)

// ApplicationService handles application lifecycle plumbing around the
// coordinate, consent, and review state machines.
type ApplicationService struct {
	apps     ports.ApplicationRepository
	notifier ports.Notifier
	events   ports.EventPublisher
	now      func() time.Time
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(apps ports.ApplicationRepository, notifier ports.Notifier, events ports.EventPublisher) *ApplicationService {
	return &ApplicationService{apps: apps, notifier: notifier, events: events, now: time.Now}
}

// Create registers a new draft application for the acting applicant.
func (s *ApplicationService) Create(ctx context.Context, actor domain.Actor, permitType domain.PermitType, applicationNo string) (*domain.Application, error) {
	if permitType != domain.PermitISAG && permitType != domain.PermitCSAG {
		return nil, &domain.ValidationError{Details: []string{fmt.Sprintf("unknown permit type %q", permitType)}}
	}
	now := s.now()
	if applicationNo == "" {
		applicationNo = fmt.Sprintf("%s-%d-%s", permitType, now.Year(), uuid.NewString()[:8])
	}

	app := &domain.Application{
		ID:            uuid.NewString(),
		ApplicationNo: applicationNo,
		ApplicantID:   actor.ID,
		PermitType:    permitType,
		Status:        domain.AppDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

// Get returns an application visible to the actor: its owner or any admin.
func (s *ApplicationService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && app.ApplicantID != actor.ID {
		return nil, &domain.AuthorizationError{Reason: "application belongs to another applicant"}
	}
	return app, nil
}

// History returns the audit trail for an application.
func (s *ApplicationService) History(ctx context.Context, actor domain.Actor, id string) ([]domain.StatusHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.apps.History(ctx, id)
}

// ListByStatus returns applications in a given status (admin queues).
func (s *ApplicationService) ListByStatus(ctx context.Context, actor domain.Actor, status domain.ApplicationStatus, limit int) ([]domain.Application, error) {
	if !actor.IsAdmin() {
		return nil, &domain.AuthorizationError{Reason: "admin role required"}
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.apps.ListByStatus(ctx, status, limit)
}
