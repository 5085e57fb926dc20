package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/internal/api"
	"contentcal/internal/calendar"
	"contentcal/internal/config"
	"contentcal/internal/drag"
	"contentcal/internal/model"
	"contentcal/internal/notes"
	"contentcal/internal/search"
	"contentcal/internal/testutil"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	srv     *Server
	backend *testutil.Backend
	clock   *clock
}

func newFixture(t *testing.T, items ...model.ContentItem) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "America/New_York"
	cfg.Calendar.SearchDebounce = 0

	loc, err := time.LoadLocation(cfg.Timezone)
	require.NoError(t, err)
	c := &clock{t: time.Date(2026, 3, 2, 10, 15, 0, 0, loc)}

	b := testutil.NewBackend(items...)
	return &fixture{
		srv:     NewServer(Options{Config: cfg, Backend: b, Now: c.Now}),
		backend: b,
		clock:   c,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) newSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestItem_NotFoundBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestItem_Found(t *testing.T) {
	f := newFixture(t, testutil.NewItem(testutil.WithID("a"), testutil.WithBrand("Zest")))
	rec := f.do(t, http.MethodGet, "/api/items/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	it := decode[model.ContentItem](t, rec)
	assert.Equal(t, "Zest", it.Brand)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, testutil.NewItem(testutil.WithID("a"), testutil.WithPublish("2026-03-02")))
	id := f.newSession(t)
	assert.Equal(t, 1, f.srv.SessionCount())

	rec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/view?view=day&date=2026-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	frame := decode[map[string]any](t, rec)
	assert.Equal(t, "day", frame["view"])
	assert.Equal(t, "2026-03-02", frame["date"])
	assert.Contains(t, frame, "day")

	// An omitted view keeps the current one.
	rec = f.do(t, http.MethodGet, "/api/sessions/"+id+"/view?step=next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	frame = decode[map[string]any](t, rec)
	assert.Equal(t, "day", frame["view"])
	assert.Equal(t, "2026-03-03", frame["date"])

	rec = f.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.srv.SessionCount())

	rec = f.do(t, http.MethodGet, "/api/sessions/"+id+"/view", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestView_BadRequests(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	for _, q := range []string{"view=year", "date=03/02/2026", "step=sideways"} {
		rec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/view?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestView_UpstreamErrors(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	f.backend.FailList = fmt.Errorf("listing: %w", api.ErrTimeout)
	rec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/view", nil)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	f.backend.FailList = &api.StatusError{Code: 500, Body: "boom"}
	rec = f.do(t, http.MethodGet, "/api/sessions/"+id+"/view", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestView_FiltersFromQuery(t *testing.T) {
	f := newFixture(t,
		testutil.NewItem(testutil.WithID("a"), testutil.WithBrand("Acme"), testutil.WithPublish("2026-03-02")),
		testutil.NewItem(testutil.WithID("b"), testutil.WithBrand("Zest"), testutil.WithPublish("2026-03-02")),
	)
	id := f.newSession(t)

	rec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/view?view=agenda&date=2026-03-02&brand=zes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	frame := decode[map[string]any](t, rec)
	filters := frame["filters"].(map[string]any)
	assert.Equal(t, "zes", filters["brand"])

	// Filters stick until the filter bar sends new ones.
	rec = f.do(t, http.MethodGet, "/api/sessions/"+id+"/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	frame = decode[map[string]any](t, rec)
	assert.Equal(t, "zes", frame["filters"].(map[string]any)["brand"])
}

func TestDragDropToHour(t *testing.T) {
	f := newFixture(t, testutil.NewItem(testutil.WithID("a"), testutil.WithPublish("2026-03-02T15:00:00.000Z")))
	id := f.newSession(t)
	base := "/api/sessions/" + id

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base+"/view?view=day&date=2026-03-02", nil).Code)

	rec := f.do(t, http.MethodPost, base+"/drag/start", itemRef{ItemID: "a"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[map[string]any](t, rec)
	assert.Equal(t, "dragging", snap["state"])

	target := drag.Target{Kind: drag.TargetHour, Date: "2026-03-02", Hour: 14}
	rec = f.do(t, http.MethodPost, base+"/drag/enter", target)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hovering", decode[map[string]any](t, rec)["state"])

	rec = f.do(t, http.MethodPost, base+"/drag/drop", target)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[drag.Result](t, rec)
	assert.Equal(t, "publish_date", res.Field)
	assert.Equal(t, "2026-03-02T19:00:00.000Z", res.Value)

	calls := f.backend.RescheduleCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].ID)

	// Idle again: a second drop has nothing to commit.
	rec = f.do(t, http.MethodPost, base+"/drag/drop", target)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrag_Errors(t *testing.T) {
	f := newFixture(t, testutil.NewItem(testutil.WithID("a"), testutil.WithPublish("2026-03-02")))
	id := f.newSession(t)
	base := "/api/sessions/" + id

	rec := f.do(t, http.MethodPost, base+"/drag/leave", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/drag/start", itemRef{ItemID: "never-rendered"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base+"/view", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/drag/start", itemRef{ItemID: "a"}).Code)

	f.backend.FailReschedule = api.ErrUnavailable
	rec = f.do(t, http.MethodPost, base+"/drag/drop", drag.Target{Kind: drag.TargetDay, Date: "2026-03-05"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, f.backend.RescheduleCalls())

	rec = f.do(t, http.MethodPost, base+"/drag/end", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, base+"/drag/start", strings.NewReader("{"))
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rec = f.do(t, http.MethodPost, base+"/drag/fling", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpandToggle(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	rec := f.do(t, http.MethodPost, "/api/sessions/"+id+"/expand/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"p1"}, decode[expandResponse](t, rec).Expanded)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+id+"/expand/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[expandResponse](t, rec).Expanded)
}

func TestPopover(t *testing.T) {
	f := newFixture(t, testutil.NewItem(testutil.WithID("a"), testutil.WithPublish("2026-03-02")))
	id := f.newSession(t)
	base := "/api/sessions/" + id
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base+"/view", nil).Code)

	rec := f.do(t, http.MethodPost, base+"/popover/open", map[string]any{
		"item_id":  "missing",
		"anchor":   map[string]float64{"x": 10, "y": 10, "w": 100, "h": 20},
		"viewport": map[string]float64{"w": 1280, "h": 800},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, base+"/popover/open", map[string]any{
		"item_id":  "a",
		"anchor":   map[string]float64{"x": 100, "y": 100, "w": 120, "h": 24},
		"viewport": map[string]float64{"w": 1280, "h": 800},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, base+"/popover/key", popoverKeyRequest{Key: "Enter"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[closedResponse](t, rec).Closed)

	rec = f.do(t, http.MethodPost, base+"/popover/key", popoverKeyRequest{Key: "Escape"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[closedResponse](t, rec).Closed)

	rec = f.do(t, http.MethodPost, base+"/popover/click", map[string]float64{"x": 5, "y": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[closedResponse](t, rec).Closed, "nothing open")

	rec = f.do(t, http.MethodPost, base+"/popover/close", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchProducts(t *testing.T) {
	f := newFixture(t)
	f.backend.AddProducts(api.Product{ID: "1", Name: "Lip balm", Brand: "Acme"}, api.Product{ID: "2", Name: "Soap", Brand: "Zest"})
	id := f.newSession(t)

	rec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/search/products?q=balm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ps := decode[productsResponse](t, rec).Products
	require.Len(t, ps, 1)
	assert.Equal(t, "1", ps[0].ID)

	rec = f.do(t, http.MethodGet, "/api/sessions/"+id+"/search/products?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())
}

func TestEvictIdle(t *testing.T) {
	f := newFixture(t)
	stale := f.newSession(t)
	f.clock.Advance(20 * time.Minute)
	fresh := f.newSession(t)
	f.clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, f.srv.EvictIdle())
	_, ok := f.srv.session(stale)
	assert.False(t, ok)
	_, ok = f.srv.session(fresh)
	assert.True(t, ok)
}

func TestNotesCRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/notes", api.NoteInput{Date: "2026-03-02", Text: "  Shoot day\nbring props  "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := created["id"].(string)
	assert.Equal(t, "private", created["visibility"])
	assert.Nil(t, created["color"])
	assert.Equal(t, "#f4f4f5", created["treatment"].(map[string]any)["background"])

	rec = f.do(t, http.MethodPost, "/api/notes", api.NoteInput{Date: "2026-03-02", Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/notes/"+id, map[string]any{"color": "green"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "green", decode[map[string]any](t, rec)["color"])

	rec = f.do(t, http.MethodGet, "/api/notes?from=2026-03-01&to=2026-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[notesResponse](t, rec)
	require.Len(t, list.Notes, 1)
	assert.Equal(t, id, list.Notes[0].ID)
	assert.Equal(t, notes.TreatmentFor(list.Notes[0].Color), list.Notes[0].Treatment)

	rec = f.do(t, http.MethodGet, "/api/notes/"+id+"/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode[model.ItemDraft](t, rec)
	assert.Equal(t, "Shoot day", draft.Title)
	assert.Equal(t, "2026-03-02", draft.PublishDate)
	assert.Equal(t, model.StatusIdea, draft.Status)

	rec = f.do(t, http.MethodDelete, "/api/notes/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/notes/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/notes/"+id+"/draft", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotes_OverlayIsReadOnly(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/api/notes/ics:holidays:x:2026-03-02", map[string]any{"text": "edit"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/notes/ics:holidays:x:2026-03-02", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/notes?from=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t,
		testutil.NewItem(testutil.WithStatus(model.StatusDraft)),
		testutil.NewItem(testutil.WithStatus(model.StatusDraft)),
		testutil.NewItem(testutil.WithStatus(model.StatusScheduled)),
	)

	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Total    int                  `json:"total"`
		ByStatus map[model.Status]int `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.ByStatus[model.StatusDraft])
	assert.Equal(t, 1, resp.ByStatus[model.StatusScheduled])
	assert.Equal(t, 0, resp.ByStatus[model.StatusIdea])
	assert.Len(t, resp.ByStatus, len(model.Statuses))

	// Stale cache is still served when upstream is down.
	f.clock.Advance(2 * statsCacheTTL)
	f.backend.FailList = api.ErrUnavailable
	rec = f.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats_UpstreamDownWithoutCache(t *testing.T) {
	f := newFixture(t)
	f.backend.FailList = fmt.Errorf("dial: %w", api.ErrUnavailable)
	rec := f.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRefreshStats(t *testing.T) {
	f := newFixture(t, testutil.NewItem(testutil.WithStatus(model.StatusReview)))
	stats, err := f.srv.RefreshStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.StatusReview])
}

func TestExportICS(t *testing.T) {
	f := newFixture(t,
		testutil.NewItem(testutil.WithID("in"), testutil.WithPublish("2026-03-10"), testutil.WithBrand("Acme")),
		testutil.NewItem(testutil.WithID("other-brand"), testutil.WithPublish("2026-03-10"), testutil.WithBrand("Zest")),
		testutil.NewItem(testutil.WithID("too-late"), testutil.WithPublish("2027-03-10"), testutil.WithBrand("Acme")),
		testutil.NewItem(testutil.WithID("undated"), testutil.WithBrand("Acme")),
	)

	rec := f.do(t, http.MethodGet, "/api/calendar.ics?brand=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "in@contentcal")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20260310")
	assert.NotContains(t, body, "other-brand@contentcal")
	assert.NotContains(t, body, "too-late@contentcal")
	assert.NotContains(t, body, "undated@contentcal")

	rec = f.do(t, http.MethodGet, "/api/calendar.ics?from=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{api.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", api.ErrNotFound), http.StatusNotFound},
		{api.ErrTimeout, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("item api request: %w", context.Canceled), statusClientClosedRequest},
		{api.ErrUnavailable, http.StatusBadGateway},
		{&api.StatusError{Code: 503}, http.StatusBadGateway},
		{calendar.ErrSuperseded, http.StatusConflict},
		{search.ErrStale, http.StatusConflict},
		{drag.ErrRequestPending, http.StatusConflict},
		{drag.ErrInvalidTarget, http.StatusBadRequest},
		{notes.ErrInvalidColor, http.StatusBadRequest},
		{notes.ErrReadOnly, http.StatusForbidden},
		{calendar.ErrClosed, http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
