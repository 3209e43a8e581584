package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with sunset date.
type DeprecatedRoute struct {
	Path        string    // Handler path pattern
	SunsetDate  time.Time // Date when endpoint will be removed
	Alternative string    // Recommended alternative endpoint (optional)
}

// DeprecationMiddleware adds Deprecation, Sunset, and Link headers to deprecated endpoints.
// This helps clients migrate gracefully to newer API versions.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Check if this route is deprecated
		for _, d := range deprecated {
			if c.Path() == d.Path || matchPattern(c.Path(), d.Path) {
				// RFC 8594 Deprecation header
				c.Set("Deprecation", "true")

				// RFC 8594 Sunset header (HTTP-Date format)
				c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))

				// RFC 8288 Link header with deprecation info
				var linkHeader string
				if d.Alternative != "" {
					linkHeader = fmt.Sprintf(`<%s>; rel="successor-version"`, d.Alternative)
					c.Set("Link", linkHeader)
				}

				// Warning header (optional, RFC 7234)
				days := time.Until(d.SunsetDate).Hours() / 24
				c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))

				break
			}
		}

		return c.Next()
	}
}

// matchPattern matches a concrete path against a fiber-style pattern,
// treating ":name" segments as single-segment wildcards
// (e.g. "/v1/applications/:id/coords" matches "/v1/applications/abc-123/coords").
func matchPattern(path, pattern string) bool {
	if path == pattern {
		return true
	}

	ps := strings.Split(path, "/")
	ts := strings.Split(pattern, "/")
	if len(ps) != len(ts) {
		return false
	}
	for i := range ts {
		if strings.HasPrefix(ts[i], ":") && ps[i] != "" {
			continue
		}
		if ts[i] != ps[i] {
			return false
		}
	}
	return true
}
