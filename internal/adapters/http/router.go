package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/oredesk/permitflow/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Deprecation headers for the legacy keyed coordinate endpoint
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{
			Path:        "/v1/applications/:id/coords",
			SunsetDate:  time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC),
			Alternative: "/v1/applications/:id/coordinates",
		},
	}))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")

	v1.Post("/applications", timeout.NewWithContext(CreateApplicationHandler(deps), 15*time.Second))
	v1.Get("/applications", timeout.NewWithContext(ListApplicationsHandler(deps), 15*time.Second))
	v1.Get("/applications/:id", timeout.NewWithContext(GetApplicationHandler(deps), 15*time.Second))
	v1.Get("/applications/:id/history", timeout.NewWithContext(ApplicationHistoryHandler(deps), 15*time.Second))

	v1.Post("/applications/:id/coordinates", timeout.NewWithContext(SubmitCoordinatesHandler(deps), 15*time.Second))
	v1.Post("/applications/:id/coordinates/review", timeout.NewWithContext(ReviewCoordinatesHandler(deps), 15*time.Second))
	v1.Get("/applications/:id/coordinates/history", timeout.NewWithContext(CoordinateHistoryHandler(deps), 15*time.Second))

	// Legacy alias for clients still posting the keyed {"1": {...}} form.
	v1.Post("/applications/:id/coords", timeout.NewWithContext(SubmitCoordinatesHandler(deps), 15*time.Second))

	v1.Get("/applications/:id/consents", timeout.NewWithContext(ListConsentsHandler(deps), 15*time.Second))
	v1.Post("/consents/:id/upload", timeout.NewWithContext(UploadConsentHandler(deps), 15*time.Second))
	v1.Post("/consents/:id/verify", timeout.NewWithContext(VerifyConsentHandler(deps), 15*time.Second))

	v1.Get("/applications/:id/items", timeout.NewWithContext(ListItemsHandler(deps), 15*time.Second))
	v1.Post("/items/:id/submit", timeout.NewWithContext(SubmitItemHandler(deps), 15*time.Second))
	v1.Post("/items/:id/review", timeout.NewWithContext(ReviewItemHandler(deps), 15*time.Second))

	v1.Get("/notifications", timeout.NewWithContext(ListNotificationsHandler(deps), 15*time.Second))
	v1.Post("/notifications/:id/read", timeout.NewWithContext(MarkNotificationReadHandler(deps), 15*time.Second))

	// Operator escape hatch for the deadline sweep
	v1.Post("/internal/sweep", SweepHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("actor", c.Get("X-Actor-ID"))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
