package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/oredesk/permitflow/internal/adapters/http"
	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/core/usecases"
)

// ---- In-memory repositories ----
//
// The pipeline flows span several calls (create, submit, review), so the
// mocks hold state instead of stubbing single returns.

type memAppRepo struct {
	mu      sync.Mutex
	apps    map[string]domain.Application
	history []domain.StatusHistory
}

func newMemAppRepo() *memAppRepo {
	return &memAppRepo{apps: make(map[string]domain.Application)}
}

func (m *memAppRepo) Create(ctx context.Context, app *domain.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = *app
	return nil
}

func (m *memAppRepo) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "application", ID: id}
	}
	cp := app
	return &cp, nil
}

func (m *memAppRepo) Update(ctx context.Context, app *domain.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = *app
	return nil
}

func (m *memAppRepo) UpdateIfStatus(ctx context.Context, app *domain.Application, expect domain.ApplicationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.apps[app.ID]
	if !ok || cur.Status != expect {
		return false, nil
	}
	m.apps[app.ID] = *app
	return true, nil
}

func (m *memAppRepo) ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int) ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Application
	for _, a := range m.apps {
		if a.Status == status && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAppRepo) ExpiredCoordinateReviews(ctx context.Context, now time.Time) ([]domain.Application, error) {
	return nil, nil
}

func (m *memAppRepo) ExpiredCoordinateRevisions(ctx context.Context, now time.Time) ([]domain.Application, error) {
	return nil, nil
}

func (m *memAppRepo) AppendHistory(ctx context.Context, h *domain.StatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, *h)
	return nil
}

func (m *memAppRepo) History(ctx context.Context, applicationID string) ([]domain.StatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StatusHistory
	for _, h := range m.history {
		if h.ApplicationID == applicationID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memLedger struct{}

func (memLedger) Approve(ctx context.Context, applicationID string, p domain.Polygon, approvedBy string, at time.Time) (*domain.CoordinateHistory, error) {
	return &domain.CoordinateHistory{ID: "hist-1", ApplicationID: applicationID, Coordinates: p, Status: domain.CoordActive}, nil
}
func (memLedger) ActiveByApplication(ctx context.Context, applicationID string) (*domain.CoordinateHistory, error) {
	return nil, &domain.NotFoundError{Entity: "coordinate history", ID: applicationID}
}
func (memLedger) ActiveSet(ctx context.Context, excludeApplicationID string) ([]domain.ReferencePolygon, error) {
	return nil, nil
}
func (memLedger) Void(ctx context.Context, applicationID string) error { return nil }
func (memLedger) ListByApplication(ctx context.Context, applicationID string) ([]domain.CoordinateHistory, error) {
	return nil, nil
}

type memConsentRepo struct{}

func (memConsentRepo) Upsert(ctx context.Context, c *domain.OverlapConsent) error { return nil }
func (memConsentRepo) GetByID(ctx context.Context, id string) (*domain.OverlapConsent, error) {
	return nil, &domain.NotFoundError{Entity: "consent", ID: id}
}
func (memConsentRepo) GetByPair(ctx context.Context, newID, affectedID string) (*domain.OverlapConsent, error) {
	return nil, &domain.NotFoundError{Entity: "consent", ID: newID}
}
func (memConsentRepo) ListByApplication(ctx context.Context, newID string) ([]domain.OverlapConsent, error) {
	return nil, nil
}
func (memConsentRepo) Update(ctx context.Context, c *domain.OverlapConsent) error { return nil }

type memItemRepo struct {
	mu    sync.Mutex
	items map[string]domain.ReviewableItem
}

func newMemItemRepo() *memItemRepo { return &memItemRepo{items: make(map[string]domain.ReviewableItem)} }

func (m *memItemRepo) CreateBatch(ctx context.Context, items []domain.ReviewableItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.items[it.ID] = it
	}
	return nil
}

func (m *memItemRepo) GetByID(ctx context.Context, id string) (*domain.ReviewableItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "item", ID: id}
	}
	cp := it
	return &cp, nil
}

func (m *memItemRepo) ListByApplication(ctx context.Context, applicationID string, kind domain.ItemKind) ([]domain.ReviewableItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReviewableItem
	for _, it := range m.items {
		if it.ApplicationID == applicationID && it.Kind == kind {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memItemRepo) UpdateIfStatus(ctx context.Context, item *domain.ReviewableItem, expect domain.ItemStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[item.ID]
	if !ok || cur.Status != expect {
		return false, nil
	}
	m.items[item.ID] = *item
	return true, nil
}

func (m *memItemRepo) Update(ctx context.Context, item *domain.ReviewableItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = *item
	return nil
}

func (m *memItemRepo) ExpiredAutoAccepts(ctx context.Context, now time.Time) ([]domain.ReviewableItem, error) {
	return nil, nil
}

func (m *memItemRepo) ExpiredRevisions(ctx context.Context, now time.Time) ([]domain.ReviewableItem, error) {
	return nil, nil
}

type memNotifRepo struct {
	mu    sync.Mutex
	rows  map[string]domain.Notification
	reads []string
}

func newMemNotifRepo() *memNotifRepo { return &memNotifRepo{rows: make(map[string]domain.Notification)} }

func (m *memNotifRepo) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[n.ID] = *n
	return nil
}

func (m *memNotifRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.RecipientID == recipientID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifRepo) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, id)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, recipientID, ntype, title, message, link string) error {
	return nil
}

type noopEvents struct{}

func (noopEvents) PublishApplicationStatus(ctx context.Context, applicationID string, from, to domain.ApplicationStatus) error {
	return nil
}
func (noopEvents) PublishSweepCompleted(ctx context.Context, result domain.SweepResult) error {
	return nil
}

type noopStorage struct{}

func (noopStorage) Store(ctx context.Context, data []byte, name string) (string, error) {
	return "mem://" + name, nil
}
func (noopStorage) Delete(ctx context.Context, url string) error { return nil }

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, &domain.NotFoundError{Entity: "cache key", ID: key}
}
func (noopCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error { return nil }
func (noopCache) Delete(ctx context.Context, key string) error                            { return nil }

// ---- Test helpers ----

type fixture struct {
	apps  *memAppRepo
	items *memItemRepo
	notes *memNotifRepo
	deps  *handler.Dependencies
}

func makeDeps() *fixture {
	apps := newMemAppRepo()
	items := newMemItemRepo()
	notes := newMemNotifRepo()
	ledger := memLedger{}
	consents := memConsentRepo{}
	notifier := noopNotifier{}
	events := noopEvents{}
	storage := noopStorage{}

	coords := usecases.NewCoordinateService(apps, ledger, consents, items, notifier, events, noopCache{}, 14, 14)
	reviews := usecases.NewReviewService(apps, items, notifier, events, storage, 14, 14)

	return &fixture{
		apps:  apps,
		items: items,
		notes: notes,
		deps: &handler.Dependencies{
			Applications:  usecases.NewApplicationService(apps, notifier, events),
			Coordinates:   coords,
			Consents:      usecases.NewConsentService(apps, ledger, consents, notifier, events, storage, 14),
			Reviews:       reviews,
			Sweeps:        usecases.NewSweepService(apps, ledger, items, coords, reviews, notifier, events),
			Notifications: notes,
			SweepToken:    "sweep-secret",
		},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func jsonReq(method, target, actorID, role string, body any) *nethttp.Request {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}
	return req
}

func decode(t *testing.T, body io.Reader, into any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// squareBody returns a valid 4-point polygon payload.
func squareBody() []byte {
	points := []map[string]float64{
		{"lat": 10.0, "lng": 20.0},
		{"lat": 10.01, "lng": 20.0},
		{"lat": 10.01, "lng": 20.01},
		{"lat": 10.0, "lng": 20.01},
	}
	b, _ := json.Marshal(points)
	return b
}

// ---- Application handler tests ----

func TestCreateApplication_Success(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := jsonReq("POST", "/v1/applications", "user-1", "applicant", map[string]string{"permit_type": "ISAG"})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created domain.Application
	decode(t, resp.Body, &created)
	if created.Status != domain.AppDraft {
		t.Errorf("expected DRAFT, got %s", created.Status)
	}
	if created.ApplicantID != "user-1" {
		t.Errorf("expected applicant user-1, got %s", created.ApplicantID)
	}
	if created.ApplicationNo == "" {
		t.Error("expected generated application_no")
	}
}

func TestCreateApplication_MissingActor(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := jsonReq("POST", "/v1/applications", "", "", map[string]string{"permit_type": "ISAG"})
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestGetApplication_NotFound(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := jsonReq("GET", "/v1/applications/nope", "user-1", "applicant", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	decode(t, resp.Body, &apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected code not_found, got %s", apiErr.Code)
	}
}

func TestGetApplication_OtherApplicantForbidden(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	created := createDraft(t, app, "user-1")

	req := jsonReq("GET", "/v1/applications/"+created.ID, "user-2", "applicant", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestListApplications_RequiresStatus(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := jsonReq("GET", "/v1/applications", "admin-1", "admin", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func createDraft(t *testing.T, app *fiber.App, actorID string) domain.Application {
	t.Helper()
	req := jsonReq("POST", "/v1/applications", actorID, "applicant", map[string]string{"permit_type": "ISAG"})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("create draft: expected 201, got %d", resp.StatusCode)
	}
	var created domain.Application
	decode(t, resp.Body, &created)
	return created
}

// ---- Coordinate handler tests ----

func TestSubmitCoordinates_Success(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	req := httptest.NewRequest("POST", "/v1/applications/"+created.ID+"/coordinates", bytes.NewReader(squareBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "user-1")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Application domain.Application     `json:"application"`
		Overlaps    []domain.OverlapResult `json:"overlaps"`
	}
	decode(t, resp.Body, &result)
	if result.Application.Status != domain.AppPendingCoordApproval {
		t.Errorf("expected PENDING_COORDINATE_APPROVAL, got %s", result.Application.Status)
	}
	if len(result.Overlaps) != 0 {
		t.Errorf("expected no overlaps, got %d", len(result.Overlaps))
	}
	if result.Application.CoordinateReviewDeadline == nil {
		t.Error("expected a review deadline")
	}
}

func TestSubmitCoordinates_InvalidPolygon(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	// Two points cannot close a polygon.
	body := []byte(`[{"lat":10,"lng":20},{"lat":11,"lng":21}]`)
	req := httptest.NewRequest("POST", "/v1/applications/"+created.ID+"/coordinates", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "user-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	decode(t, resp.Body, &apiErr)
	if apiErr.Code != "validation_failed" {
		t.Errorf("expected validation_failed, got %s", apiErr.Code)
	}
	if len(apiErr.Details) == 0 {
		t.Error("expected validation details")
	}
}

func TestSubmitCoordinates_WrongStateConflicts(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	submit := func() int {
		req := httptest.NewRequest("POST", "/v1/applications/"+created.ID+"/coordinates", bytes.NewReader(squareBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Actor-ID", "user-1")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode
	}

	if code := submit(); code != 201 {
		t.Fatalf("first submit: expected 201, got %d", code)
	}
	// Already pending review; a second submission must be rejected.
	req := httptest.NewRequest("POST", "/v1/applications/"+created.ID+"/coordinates", bytes.NewReader(squareBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "user-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("second submit: expected 409, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	decode(t, resp.Body, &apiErr)
	if apiErr.CurrentStatus != string(domain.AppPendingCoordApproval) {
		t.Errorf("expected current_status %s, got %s", domain.AppPendingCoordApproval, apiErr.CurrentStatus)
	}
}

func TestReviewCoordinates_RequiresAdmin(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	req := jsonReq("POST", "/v1/applications/"+created.ID+"/coordinates/review", "user-1", "applicant",
		map[string]string{"decision": "approve"})
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestReviewCoordinates_ApproveSeedsChecklist(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	req := httptest.NewRequest("POST", "/v1/applications/"+created.ID+"/coordinates", bytes.NewReader(squareBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "user-1")
	if resp, _ := app.Test(req, -1); resp.StatusCode != 201 {
		t.Fatalf("submit failed: %d", resp.StatusCode)
	}

	req = jsonReq("POST", "/v1/applications/"+created.ID+"/coordinates/review", "admin-1", "admin",
		map[string]string{"decision": "approve"})
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var reviewed domain.Application
	decode(t, resp.Body, &reviewed)
	if reviewed.Status != domain.AppAcceptanceInProgress {
		t.Errorf("expected ACCEPTANCE_IN_PROGRESS, got %s", reviewed.Status)
	}

	req = jsonReq("GET", "/v1/applications/"+created.ID+"/items?kind=acceptance_requirement", "user-1", "applicant", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("list items: expected 200, got %d", resp.StatusCode)
	}
	var items []domain.ReviewableItem
	decode(t, resp.Body, &items)
	if len(items) == 0 {
		t.Error("expected acceptance checklist to be seeded on approval")
	}
}

func TestLegacyCoordsAlias_DeprecationHeaders(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	req := httptest.NewRequest("POST", "/v1/applications/"+created.ID+"/coords", bytes.NewReader(squareBody()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "user-1")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header on legacy alias")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header on legacy alias")
	}
}

// ---- Item handler tests ----

func TestListItems_UnknownKind(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	req := jsonReq("GET", "/v1/applications/"+created.ID+"/items?kind=bogus", "user-1", "applicant", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Notification handler tests ----

func TestNotifications_ListAndMarkRead(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	f.notes.Create(context.Background(), &domain.Notification{ID: "n1", RecipientID: "user-1", Title: "hello"})

	req := jsonReq("GET", "/v1/notifications", "user-1", "applicant", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var notes []domain.Notification
	decode(t, resp.Body, &notes)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}

	req = jsonReq("POST", "/v1/notifications/n1/read", "user-1", "applicant", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(f.notes.reads) != 1 || f.notes.reads[0] != "n1" {
		t.Errorf("expected n1 marked read, got %v", f.notes.reads)
	}
}

// ---- Sweep handler tests ----

func TestSweep_RejectsBadToken(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := httptest.NewRequest("POST", "/v1/internal/sweep", nil)
	req.Header.Set("X-Sweep-Token", "wrong")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestSweep_RunsWithToken(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := httptest.NewRequest("POST", "/v1/internal/sweep", nil)
	req.Header.Set("X-Sweep-Token", "sweep-secret")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result domain.SweepResult
	decode(t, resp.Body, &result)
	if result.AutoAccepted != 0 || result.Voided != 0 {
		t.Errorf("expected empty sweep, got %+v", result)
	}
}

// ---- GraphQL tests ----

func TestGraphQL_ApplicationQuery(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)
	created := createDraft(t, app, "user-1")

	query := map[string]any{
		"query": `query($id: String!) { application(id: $id) { id status applicant_id } }`,
		"variables": map[string]any{
			"id": created.ID,
		},
	}
	req := jsonReq("POST", "/graphql", "user-1", "applicant", query)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Application struct {
				ID          string `json:"id"`
				Status      string `json:"status"`
				ApplicantID string `json:"applicant_id"`
			} `json:"application"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	decode(t, resp.Body, &result)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if result.Data.Application.ID != created.ID {
		t.Errorf("expected id %s, got %s", created.ID, result.Data.Application.ID)
	}
	if result.Data.Application.Status != string(domain.AppDraft) {
		t.Errorf("expected DRAFT, got %s", result.Data.Application.Status)
	}
}

func TestGraphQL_RequiresActor(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	query := map[string]any{"query": `{ applicationsByStatus(status: "DRAFT") { id } }`}
	req := jsonReq("POST", "/graphql", "", "", query)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

// ---- Middleware tests ----

func TestAPIVersionHeader(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if got := resp.Header.Get("X-API-Version"); got != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
}

func TestHealth_Returns200(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "healthy") {
		t.Errorf("expected healthy body, got %s", body)
	}
}

func TestReady_NoDB(t *testing.T) {
	f := makeDeps()
	app := setupApp(f.deps)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 without a database, got %d", resp.StatusCode)
	}
}
