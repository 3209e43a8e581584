package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/pkg/geospatial"
)

// In-memory fakes. The state machines span several calls, so the fakes
// hold real state instead of per-call stubs.

type fakeAppRepo struct {
	mu      sync.Mutex
	apps    map[string]*domain.Application
	history []domain.StatusHistory
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{apps: map[string]*domain.Application{}}
}

func (f *fakeAppRepo) Create(_ context.Context, app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *app
	f.apps[app.ID] = &cp
	return nil
}

func (f *fakeAppRepo) GetByID(_ context.Context, id string) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "application", ID: id}
	}
	cp := *app
	return &cp, nil
}

func (f *fakeAppRepo) Update(_ context.Context, app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *app
	f.apps[app.ID] = &cp
	return nil
}

func (f *fakeAppRepo) UpdateIfStatus(_ context.Context, app *domain.Application, expect domain.ApplicationStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.apps[app.ID]
	if !ok {
		return false, &domain.NotFoundError{Entity: "application", ID: app.ID}
	}
	if cur.Status != expect {
		return false, nil
	}
	cp := *app
	f.apps[app.ID] = &cp
	return true, nil
}

func (f *fakeAppRepo) ListByStatus(_ context.Context, status domain.ApplicationStatus, limit int) ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Application
	for _, app := range f.apps {
		if app.Status == status {
			out = append(out, *app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAppRepo) ExpiredCoordinateReviews(_ context.Context, now time.Time) ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Application
	for _, app := range f.apps {
		if app.Status == domain.AppPendingCoordApproval &&
			app.CoordinateReviewDeadline != nil && app.CoordinateReviewDeadline.Before(now) {
			out = append(out, *app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAppRepo) ExpiredCoordinateRevisions(_ context.Context, now time.Time) ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Application
	for _, app := range f.apps {
		if app.Status == domain.AppCoordRevisionRequired &&
			app.CoordinateRevisionDeadline != nil && app.CoordinateRevisionDeadline.Before(now) {
			out = append(out, *app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAppRepo) AppendHistory(_ context.Context, h *domain.StatusHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *h)
	return nil
}

func (f *fakeAppRepo) History(_ context.Context, applicationID string) ([]domain.StatusHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StatusHistory
	for _, h := range f.history {
		if h.ApplicationID == applicationID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	seq     int
	records map[string]*domain.CoordinateHistory // keyed by record id
	appNos  map[string]string                    // application id -> application no
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*domain.CoordinateHistory{}, appNos: map[string]string{}}
}

func (f *fakeLedger) Approve(_ context.Context, applicationID string, p domain.Polygon, approvedBy string, at time.Time) (*domain.CoordinateHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec := &domain.CoordinateHistory{
		ID:            fmt.Sprintf("hist-%d", f.seq),
		ApplicationID: applicationID,
		Coordinates:   p,
		PointCount:    len(p),
		Bounds:        geospatial.BoundingBox(p),
		Status:        domain.CoordActive,
		ApprovedBy:    approvedBy,
		ApprovedAt:    at,
	}
	for _, r := range f.records {
		if r.ApplicationID == applicationID && r.Status == domain.CoordActive {
			r.Status = domain.CoordReplaced
			t := at
			r.ReplacedAt = &t
			r.ReplacedBy = rec.ID
		}
	}
	f.records[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (f *fakeLedger) ActiveByApplication(_ context.Context, applicationID string) (*domain.CoordinateHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ApplicationID == applicationID && r.Status == domain.CoordActive {
			cp := *r
			return &cp, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "coordinate history", ID: applicationID}
}

func (f *fakeLedger) ActiveSet(_ context.Context, excludeApplicationID string) ([]domain.ReferencePolygon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReferencePolygon
	for _, r := range f.records {
		if r.Status != domain.CoordActive || r.ApplicationID == excludeApplicationID {
			continue
		}
		out = append(out, domain.ReferencePolygon{
			CoordinateHistoryID: r.ID,
			ApplicationID:       r.ApplicationID,
			ApplicationNo:       f.appNos[r.ApplicationID],
			Polygon:             r.Coordinates,
			Bounds:              r.Bounds,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoordinateHistoryID < out[j].CoordinateHistoryID })
	return out, nil
}

func (f *fakeLedger) Void(_ context.Context, applicationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ApplicationID == applicationID && r.Status == domain.CoordActive {
			r.Status = domain.CoordVoided
		}
	}
	return nil
}

func (f *fakeLedger) ListByApplication(_ context.Context, applicationID string) ([]domain.CoordinateHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CoordinateHistory
	for _, r := range f.records {
		if r.ApplicationID == applicationID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeConsentRepo struct {
	mu       sync.Mutex
	consents map[string]*domain.OverlapConsent
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{consents: map[string]*domain.OverlapConsent{}}
}

func (f *fakeConsentRepo) Upsert(_ context.Context, c *domain.OverlapConsent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.consents[c.ID] = &cp
	return nil
}

func (f *fakeConsentRepo) GetByID(_ context.Context, id string) (*domain.OverlapConsent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consents[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "consent", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConsentRepo) GetByPair(_ context.Context, newID, affectedID string) (*domain.OverlapConsent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.consents {
		if c.NewApplicationID == newID && c.AffectedApplicationID == affectedID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "consent", ID: newID + "/" + affectedID}
}

func (f *fakeConsentRepo) ListByApplication(_ context.Context, newID string) ([]domain.OverlapConsent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OverlapConsent
	for _, c := range f.consents {
		if c.NewApplicationID == newID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeConsentRepo) Update(_ context.Context, c *domain.OverlapConsent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.consents[c.ID]; !ok {
		return &domain.NotFoundError{Entity: "consent", ID: c.ID}
	}
	cp := *c
	f.consents[c.ID] = &cp
	return nil
}

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[string]*domain.ReviewableItem
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: map[string]*domain.ReviewableItem{}}
}

func (f *fakeItemRepo) CreateBatch(_ context.Context, items []domain.ReviewableItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range items {
		cp := items[i]
		f.items[cp.ID] = &cp
	}
	return nil
}

func (f *fakeItemRepo) GetByID(_ context.Context, id string) (*domain.ReviewableItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "item", ID: id}
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItemRepo) ListByApplication(_ context.Context, applicationID string, kind domain.ItemKind) ([]domain.ReviewableItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReviewableItem
	for _, it := range f.items {
		if it.ApplicationID == applicationID && it.Kind == kind {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (f *fakeItemRepo) UpdateIfStatus(_ context.Context, item *domain.ReviewableItem, expect domain.ItemStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.items[item.ID]
	if !ok {
		return false, &domain.NotFoundError{Entity: "item", ID: item.ID}
	}
	if cur.Status != expect {
		return false, nil
	}
	cp := *item
	f.items[item.ID] = &cp
	return true, nil
}

func (f *fakeItemRepo) Update(_ context.Context, item *domain.ReviewableItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeItemRepo) ExpiredAutoAccepts(_ context.Context, now time.Time) ([]domain.ReviewableItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReviewableItem
	for _, it := range f.items {
		if it.Status == domain.ItemPendingReview && !it.IsVoided &&
			it.AutoAcceptDeadline != nil && it.AutoAcceptDeadline.Before(now) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeItemRepo) ExpiredRevisions(_ context.Context, now time.Time) ([]domain.ReviewableItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReviewableItem
	for _, it := range f.items {
		if it.Status == domain.ItemRevisionRequired && !it.IsVoided &&
			it.RevisionDeadline != nil && it.RevisionDeadline.Before(now) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type sentNotification struct {
	RecipientID string
	Type        string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(_ context.Context, recipientID, ntype, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{RecipientID: recipientID, Type: ntype})
	return nil
}

func (f *fakeNotifier) countType(ntype string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Type == ntype {
			n++
		}
	}
	return n
}

type fakeEvents struct {
	mu       sync.Mutex
	statuses []domain.ApplicationStatus
	sweeps   []domain.SweepResult
}

func (f *fakeEvents) PublishApplicationStatus(_ context.Context, _ string, _, to domain.ApplicationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, to)
	return nil
}

func (f *fakeEvents) PublishSweepCompleted(_ context.Context, res domain.SweepResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps = append(f.sweeps, res)
	return nil
}

type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{files: map[string][]byte{}} }

func (f *fakeStorage) Store(_ context.Context, data []byte, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := fmt.Sprintf("mem://%s/%d", name, len(f.files))
	f.files[url] = data
	return url, nil
}

func (f *fakeStorage) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, url)
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	misses int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		f.misses++
		return nil, fmt.Errorf("cache miss: %s", key)
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// testEnv wires every service to shared in-memory fakes with a pinned clock.
type testEnv struct {
	apps     *fakeAppRepo
	ledger   *fakeLedger
	consents *fakeConsentRepo
	items    *fakeItemRepo
	notifier *fakeNotifier
	events   *fakeEvents
	storage  *fakeStorage
	cache    *fakeCache

	appSvc     *ApplicationService
	coordSvc   *CoordinateService
	consentSvc *ConsentService
	reviewSvc  *ReviewService
	sweepSvc   *SweepService

	now time.Time
}

func newTestEnv() *testEnv {
	e := &testEnv{
		apps:     newFakeAppRepo(),
		ledger:   newFakeLedger(),
		consents: newFakeConsentRepo(),
		items:    newFakeItemRepo(),
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
		storage:  newFakeStorage(),
		cache:    newFakeCache(),
		// A Monday, so working-day arithmetic is easy to reason about.
		now: time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return e.now }

	e.appSvc = NewApplicationService(e.apps, e.notifier, e.events)
	e.appSvc.now = clock
	e.coordSvc = NewCoordinateService(e.apps, e.ledger, e.consents, e.items, e.notifier, e.events, e.cache, 14, 14)
	e.coordSvc.now = clock
	e.consentSvc = NewConsentService(e.apps, e.ledger, e.consents, e.notifier, e.events, e.storage, 14)
	e.consentSvc.now = clock
	e.reviewSvc = NewReviewService(e.apps, e.items, e.notifier, e.events, e.storage, 14, 14)
	e.reviewSvc.now = clock
	e.sweepSvc = NewSweepService(e.apps, e.ledger, e.items, e.coordSvc, e.reviewSvc, e.notifier, e.events)
	e.sweepSvc.now = clock
	return e
}

// advance moves the pinned clock forward.
func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

// squareJSON builds an array-form coordinate payload for a square of
// roughly size degrees on a side.
func squareJSON(lat, lng, size float64) []byte {
	return []byte(fmt.Sprintf(
		`[{"lat":%f,"lng":%f},{"lat":%f,"lng":%f},{"lat":%f,"lng":%f},{"lat":%f,"lng":%f}]`,
		lat, lng,
		lat, lng+size,
		lat+size, lng+size,
		lat+size, lng,
	))
}
