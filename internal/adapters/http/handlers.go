package http

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/pkg/metrics"
)

// CreateApplicationHandler registers a new draft application.
func CreateApplicationHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		PermitType    string `json:"permit_type"`
		ApplicationNo string `json:"application_no"`
	}
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		app, err := deps.Applications.Create(c.UserContext(), actor, domain.PermitType(req.PermitType), req.ApplicationNo)
		if err != nil {
			return domainError(c, err)
		}
		return c.Status(201).JSON(app)
	}
}

// GetApplicationHandler returns one application.
func GetApplicationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		app, err := deps.Applications.Get(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(app)
	}
}

// ApplicationHistoryHandler returns the status audit trail.
func ApplicationHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		history, err := deps.Applications.History(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(history)
	}
}

// ListApplicationsHandler returns the admin queue for one status.
func ListApplicationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		status := c.Query("status")
		if status == "" {
			return errBadRequest(c, "status query parameter is required")
		}
		limit := c.QueryInt("limit", 50)

		apps, err := deps.Applications.ListByStatus(c.UserContext(), actor, domain.ApplicationStatus(status), limit)
		if err != nil {
			return domainError(c, err)
		}

		pg := Pagination{Offset: 0, Limit: limit, Total: len(apps)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: apps, Pagination: pg})
	}
}

// SubmitCoordinatesHandler accepts a boundary submission. The body is the
// coordinate payload itself, either an array of {lat,lng} points or the
// legacy keyed form.
func SubmitCoordinatesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "coordinate payload is required")
		}

		start := time.Now()
		res, err := deps.Coordinates.SubmitCoordinates(c.UserContext(), actor, c.Params("id"), json.RawMessage(body))
		if err != nil {
			metrics.CoordinateSubmissions.WithLabelValues("rejected").Inc()
			return domainError(c, err)
		}
		metrics.OverlapCheckDuration.Observe(time.Since(start).Seconds())
		if len(res.Overlaps) > 0 {
			metrics.CoordinateSubmissions.WithLabelValues("overlap").Inc()
			metrics.OverlapsDetected.Add(float64(len(res.Overlaps)))
		} else {
			metrics.CoordinateSubmissions.WithLabelValues("clean").Inc()
		}
		return c.Status(201).JSON(res)
	}
}

// ReviewCoordinatesHandler records the admin decision on a pending boundary.
func ReviewCoordinatesHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Decision string `json:"decision"`
		Remarks  string `json:"remarks"`
	}
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		app, err := deps.Coordinates.ReviewCoordinates(c.UserContext(), actor, c.Params("id"), req.Decision, req.Remarks)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(app)
	}
}

// CoordinateHistoryHandler returns the boundary ledger for an application.
func CoordinateHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		history, err := deps.Coordinates.CoordinateHistory(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(history)
	}
}

// ListConsentsHandler returns an application's overlap consent records.
func ListConsentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		consents, err := deps.Consents.List(c.UserContext(), actor, c.Params("id"))
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(consents)
	}
}

// UploadConsentHandler attaches a signed consent document. The document
// arrives as multipart field "file", or as the raw body with ?filename=.
func UploadConsentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		data, name, err := readUpload(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		consent, err := deps.Consents.Upload(c.UserContext(), actor, c.Params("id"), data, name)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(consent)
	}
}

// VerifyConsentHandler records the admin decision on an uploaded consent.
func VerifyConsentHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Decision string `json:"decision"`
		Remarks  string `json:"remarks"`
	}
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		consent, err := deps.Consents.Verify(c.UserContext(), actor, c.Params("id"), req.Decision, req.Remarks)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(consent)
	}
}

// ListItemsHandler returns one checklist for an application.
func ListItemsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		kind := domain.ItemKind(c.Query("kind", string(domain.KindAcceptanceRequirement)))
		if kind != domain.KindAcceptanceRequirement && kind != domain.KindOtherDocument {
			return errBadRequest(c, "kind must be acceptance_requirement or other_document")
		}
		items, err := deps.Reviews.List(c.UserContext(), actor, c.Params("id"), kind)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(items)
	}
}

// SubmitItemHandler records an applicant submission for one requirement or
// document: multipart "file" and/or a "data" form field with JSON, or a
// bare JSON body {"data": {...}}.
func SubmitItemHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}

		var (
			data      []byte
			name      string
			submitted map[string]any
		)
		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return errBadRequest(c, "unreadable file upload")
			}
			data, err = io.ReadAll(f)
			f.Close()
			if err != nil {
				return errBadRequest(c, "unreadable file upload")
			}
			name = fh.Filename
			if raw := c.FormValue("data"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &submitted); err != nil {
					return errBadRequest(c, "data field must be a JSON object")
				}
			}
		} else if len(c.Body()) > 0 {
			var body struct {
				Data map[string]any `json:"data"`
			}
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
			submitted = body.Data
		}

		item, err := deps.Reviews.SubmitItem(c.UserContext(), actor, c.Params("id"), data, name, submitted)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(item)
	}
}

// ReviewItemHandler records the admin decision on a submitted item.
func ReviewItemHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Decision string `json:"decision"`
		Remarks  string `json:"remarks"`
	}
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		item, err := deps.Reviews.ReviewItem(c.UserContext(), actor, c.Params("id"), req.Decision, req.Remarks)
		if err != nil {
			return domainError(c, err)
		}
		metrics.ItemReviews.WithLabelValues(string(item.Kind), req.Decision).Inc()
		return c.JSON(item)
	}
}

// ListNotificationsHandler returns the actor's notifications; admins also
// receive the role-addressed fan-out.
func ListNotificationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := actorFrom(c)
		if !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		notifications, err := deps.Notifications.ListByRecipient(c.UserContext(), actor.ID, limit)
		if err != nil {
			return errInternal(c, "list notifications failed")
		}
		if actor.IsAdmin() {
			roleWide, err := deps.Notifications.ListByRecipient(c.UserContext(), domain.RecipientAdmins, limit)
			if err != nil {
				return errInternal(c, "list notifications failed")
			}
			notifications = append(notifications, roleWide...)
		}
		return c.JSON(notifications)
	}
}

// MarkNotificationReadHandler stamps one notification read.
func MarkNotificationReadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := actorFrom(c); !ok {
			return errUnauthorized(c, "X-Actor-ID header is required")
		}
		if err := deps.Notifications.MarkRead(c.UserContext(), c.Params("id")); err != nil {
			return errInternal(c, "mark read failed")
		}
		return c.SendStatus(204)
	}
}

// SweepHandler triggers an immediate deadline sweep. It backs the
// scheduled workflow for operators who cannot wait for the next cron run.
func SweepHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.SweepToken == "" || c.Get("X-Sweep-Token") != deps.SweepToken {
			return errForbidden(c, "invalid sweep token")
		}
		result, err := deps.Sweeps.RunDeadlineSweep(c.UserContext(), time.Now().UTC())
		if err != nil {
			return errInternal(c, "sweep failed: "+err.Error())
		}
		return c.JSON(result)
	}
}

// readUpload extracts an uploaded document: multipart field "file" first,
// then the raw request body with an optional ?filename= query.
func readUpload(c *fiber.Ctx) ([]byte, string, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, "", fiber.NewError(400, "unreadable file upload")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", fiber.NewError(400, "unreadable file upload")
		}
		return data, fh.Filename, nil
	}
	return c.Body(), c.Query("filename"), nil
}
