package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/oredesk/permitflow/internal/adapters/http"
	natsadapter "github.com/oredesk/permitflow/internal/adapters/nats"
	"github.com/oredesk/permitflow/internal/adapters/postgres"
	"github.com/oredesk/permitflow/internal/adapters/storage"
	"github.com/oredesk/permitflow/internal/adapters/valkey"
	"github.com/oredesk/permitflow/internal/core/ports"
	"github.com/oredesk/permitflow/internal/core/usecases"
	"github.com/oredesk/permitflow/internal/pkg/config"
	"github.com/oredesk/permitflow/internal/pkg/logging"
	"github.com/oredesk/permitflow/internal/pkg/metrics"
	"github.com/oredesk/permitflow/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("permitflow-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := logging.Service("api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. The pipeline degrades to direct ledger reads without it.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable, running uncached", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Document storage
	store, err := storage.NewLocal(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// Repos
	appRepo := postgres.NewApplicationRepo(db)
	ledger := postgres.NewCoordinateHistoryRepo(db)
	consentRepo := postgres.NewConsentRepo(db)
	itemRepo := postgres.NewItemRepo(db)
	notifRepo := postgres.NewNotificationRepo(db)

	notifier := natsadapter.NewNotifier(notifRepo, pub)

	// Use cases
	appSvc := usecases.NewApplicationService(appRepo, notifier, pub)
	coordSvc := usecases.NewCoordinateService(appRepo, ledger, consentRepo, itemRepo, notifier, pub, cacheSvc,
		cfg.Review.CoordinateReviewDays, cfg.Review.RevisionDays)
	consentSvc := usecases.NewConsentService(appRepo, ledger, consentRepo, notifier, pub, store,
		cfg.Review.CoordinateReviewDays)
	reviewSvc := usecases.NewReviewService(appRepo, itemRepo, notifier, pub, store,
		cfg.Review.ItemReviewDays, cfg.Review.RevisionDays)
	sweepSvc := usecases.NewSweepService(appRepo, ledger, itemRepo, coordSvc, reviewSvc, notifier, pub)

	deps := &http.Dependencies{
		Applications:  appSvc,
		Coordinates:   coordSvc,
		Consents:      consentSvc,
		Reviews:       reviewSvc,
		Sweeps:        sweepSvc,
		Notifications: notifRepo,
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
		SweepToken:    cfg.Sweep.Token,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    16 * 1024 * 1024, // consent and document uploads
		AppName:      "PermitFlow API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Actor-ID, X-Actor-Role",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Export pgx pool stats alongside request metrics
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
