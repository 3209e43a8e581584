package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/ports"
	"github.com/oredesk/permitflow/internal/core/usecases"
	"github.com/oredesk/permitflow/internal/pkg/metrics"
)

// SweepActivities holds the activity implementations for the sweep workflow.
type SweepActivities struct {
	SweepService *usecases.SweepService
	Notifier     ports.Notifier
}

// RunDeadlineSweep executes one sweep at the given cutoff.
func (a *SweepActivities) RunDeadlineSweep(ctx context.Context, now time.Time) (domain.SweepResult, error) {
	start := time.Now()
	result, err := a.SweepService.RunDeadlineSweep(ctx, now)
	if err != nil {
		return result, fmt.Errorf("run sweep: %w", err)
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	metrics.SweepAutoAccepted.Add(float64(result.AutoAccepted))
	metrics.SweepVoided.Add(float64(result.Voided))
	metrics.SweepErrors.Add(float64(len(result.Errors)))
	return result, nil
}

// ReportSweepErrors notifies admins about records the sweep could not process.
func (a *SweepActivities) ReportSweepErrors(ctx context.Context, result domain.SweepResult) error {
	if a.Notifier == nil || len(result.Errors) == 0 {
		return nil
	}
	msg := fmt.Sprintf("Deadline sweep finished with %d failed record(s); first: %s",
		len(result.Errors), result.Errors[0])
	return a.Notifier.Notify(ctx, domain.RecipientAdmins, "sweep_errors",
		"Deadline sweep needs attention", msg, "/admin/sweeps")
}
