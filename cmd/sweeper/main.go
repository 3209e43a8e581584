package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/oredesk/permitflow/internal/adapters/nats"
	"github.com/oredesk/permitflow/internal/adapters/postgres"
	"github.com/oredesk/permitflow/internal/adapters/storage"
	"github.com/oredesk/permitflow/internal/core/usecases"
	"github.com/oredesk/permitflow/internal/pkg/config"
	"github.com/oredesk/permitflow/internal/pkg/logging"
	"github.com/oredesk/permitflow/internal/workflows"
)

func main() {
	cfg, err := config.Load("permitflow-sweeper")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := logging.Service("sweeper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Document storage (review service needs it for its constructor; the
	// sweeper itself never writes files)
	store, err := storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// Repos and services. The sweeper runs without a cache: approvals it
	// performs invalidate nothing that a missing cache makes stale.
	appRepo := postgres.NewApplicationRepo(db)
	ledger := postgres.NewCoordinateHistoryRepo(db)
	consentRepo := postgres.NewConsentRepo(db)
	itemRepo := postgres.NewItemRepo(db)
	notifRepo := postgres.NewNotificationRepo(db)
	notifier := natsadapter.NewNotifier(notifRepo, pub)

	coordSvc := usecases.NewCoordinateService(appRepo, ledger, consentRepo, itemRepo, notifier, pub, nil,
		cfg.Review.CoordinateReviewDays, cfg.Review.RevisionDays)
	reviewSvc := usecases.NewReviewService(appRepo, itemRepo, notifier, pub, store,
		cfg.Review.ItemReviewDays, cfg.Review.RevisionDays)
	sweepSvc := usecases.NewSweepService(appRepo, ledger, itemRepo, coordSvc, reviewSvc, notifier, pub)

	// Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = workflows.SweepTaskQueueDefault
	}

	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.DeadlineSweepWorkflow)
	w.RegisterActivity(&workflows.SweepActivities{
		SweepService: sweepSvc,
		Notifier:     notifier,
	})

	// Start (or resume) the cron schedule. WorkflowIDReusePolicy keeps a
	// single schedule alive across worker restarts.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           "deadline-sweep-cron",
		TaskQueue:    taskQueue,
		CronSchedule: cfg.Sweep.CronSchedule,
	}, workflows.DeadlineSweepWorkflow)
	if err != nil {
		slog.Warn("cron schedule start failed (may already be running)", "error", err)
	}

	logger.Info("sweeper worker started", "task_queue", taskQueue, "cron", cfg.Sweep.CronSchedule)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
