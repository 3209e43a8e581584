package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0"

		case strings.HasSuffix(path, "/coordinates/history"):
			ttl = "private, max-age=60" // Ledger is append-only, short TTL covers approvals

		case path == "/v1/notifications":
			ttl = "private, max-age=0" // Unread counts must be live

		case strings.HasPrefix(path, "/v1/"):
			// Application state changes on review decisions, keep responses private
			// and let ETag revalidation do the work.
			ttl = "private, no-cache"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
