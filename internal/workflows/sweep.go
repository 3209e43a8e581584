package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// SweepTaskQueueDefault is used when no task queue is configured.
const SweepTaskQueueDefault = "permitflow-sweep"

// DeadlineSweepWorkflow runs one deadline sweep as a Temporal cron
// workflow. The sweep itself is idempotent, so the retry policy can safely
// re-run a failed attempt; a sweep that keeps failing is surfaced through
// the final alert activity rather than retried forever.
func DeadlineSweepWorkflow(ctx workflow.Context) (domain.SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting deadline sweep")

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// The sweep timestamp comes from workflow time so a retried attempt
	// processes the same cutoff.
	now := workflow.Now(ctx)

	var result domain.SweepResult
	if err := workflow.ExecuteActivity(ctx, "RunDeadlineSweep", now).Get(ctx, &result); err != nil {
		return result, err
	}

	if len(result.Errors) > 0 {
		logger.Warn("sweep finished with per-record errors", "count", len(result.Errors))
		_ = workflow.ExecuteActivity(ctx, "ReportSweepErrors", result).Get(ctx, nil)
	}

	logger.Info("Deadline sweep completed", "autoAccepted", result.AutoAccepted, "voided", result.Voided)
	return result, nil
}
