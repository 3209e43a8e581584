package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status        int      `json:"status"`
	Code          string   `json:"code"`    // Error code: bad_request, not_found, state_conflict, etc.
	Message       string   `json:"message"` // Human-readable message
	Details       []string `json:"details,omitempty"`
	CurrentStatus string   `json:"current_status,omitempty"` // set on state conflicts so clients can resync
	RequestID     string   `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// domainError maps the domain error taxonomy onto HTTP responses. Unknown
// errors become opaque 500s.
func domainError(c *fiber.Ctx, err error) error {
	reqID, _ := c.Locals("requestid").(string)

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return c.Status(400).JSON(APIError{
			Status: 400, Code: "validation_failed",
			Message:   "input validation failed",
			Details:   ve.Details,
			RequestID: reqID,
		})
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return newError(c, 404, "not_found", nf.Error())
	}
	var ae *domain.AuthorizationError
	if errors.As(err, &ae) {
		return newError(c, 403, "forbidden", ae.Error())
	}
	var sc *domain.StateConflictError
	if errors.As(err, &sc) {
		return c.Status(409).JSON(APIError{
			Status: 409, Code: "state_conflict",
			Message:       sc.Error(),
			CurrentStatus: sc.CurrentStatus,
			RequestID:     reqID,
		})
	}
	var de *domain.DependencyError
	if errors.As(err, &de) {
		return newError(c, 422, "missing_prerequisite", de.Error())
	}
	return errInternal(c, "internal error")
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, 401, "unauthorized", msg)
}

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, 403, "forbidden", msg)
}
