package http

import (
	"github.com/nats-io/nats.go"

	"github.com/oredesk/permitflow/internal/adapters/postgres"
	"github.com/oredesk/permitflow/internal/adapters/valkey"
	"github.com/oredesk/permitflow/internal/core/ports"
	"github.com/oredesk/permitflow/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Applications *usecases.ApplicationService
	Coordinates  *usecases.CoordinateService
	Consents     *usecases.ConsentService
	Reviews      *usecases.ReviewService
	Sweeps       *usecases.SweepService

	Notifications ports.NotificationRepository

	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache

	// Shared secret for the manual sweep endpoint.
	SweepToken string
}
