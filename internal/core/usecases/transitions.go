package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
)

// transitionApplication applies a guarded status change, appends the audit
// row, and publishes the status event. The write only lands if the stored
// row is still in the expected source state; callers must treat a false
// return as a lost race and re-read.
func transitionApplication(
	ctx context.Context,
	apps ports.ApplicationRepository,
	events ports.EventPublisher,
	app *domain.Application,
	from domain.ApplicationStatus,
	actorID, remarks string,
	at time.Time,
) (bool, error) {
	app.UpdatedAt = at
	ok, err := apps.UpdateIfStatus(ctx, app, from)
	if err != nil || !ok {
		return ok, err
	}

	if err := apps.AppendHistory(ctx, &domain.StatusHistory{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		FromStatus:    from,
		ToStatus:      app.Status,
		ActorID:       actorID,
		Remarks:       remarks,
		CreatedAt:     at,
	}); err != nil {
		// The transition itself landed; a missing audit row is logged, not fatal.
		slog.Error("append status history", "application_id", app.ID, "error", err)
	}

	if events != nil {
		if err := events.PublishApplicationStatus(ctx, app.ID, from, app.Status); err != nil {
			slog.Warn("publish status event", "application_id", app.ID, "error", err)
		}
	}
	return true, nil
}

// notify delivers best-effort; a failed notification never rolls back the
// transition that triggered it.
func notify(ctx context.Context, n ports.Notifier, recipientID, ntype, title, message, link string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, recipientID, ntype, title, message, link); err != nil {
		slog.Warn("notify", "recipient", recipientID, "type", ntype, "error", err)
	}
}
