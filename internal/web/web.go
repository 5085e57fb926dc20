package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"contentcal/internal/api"
	"contentcal/internal/bucket"
	"contentcal/internal/calendar"
	"contentcal/internal/config"
	"contentcal/internal/drag"
	"contentcal/internal/ics"
	appLog "contentcal/internal/log"
	"contentcal/internal/model"
	"contentcal/internal/notes"
	"contentcal/internal/popover"
	"contentcal/internal/search"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// statusClientClosedRequest answers requests whose caller went away.
const statusClientClosedRequest = 499

var errBadBody = errors.New("malformed request body")

// Options wires a Server.
type Options struct {
	Config  *config.Config
	Backend api.Backend
	// Overlay supplies read-only feed notes. May be nil.
	Overlay *ics.Overlay
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server exposes the calendar sessions, notes, stats and the iCalendar
// export over JSON HTTP.
type Server struct {
	backend api.Backend
	overlay *ics.Overlay
	now     func() time.Time
	mux     *http.ServeMux

	cfgMu sync.RWMutex
	cfg   *config.Config

	sessMu   sync.RWMutex
	sessions map[string]*calendar.Session

	// In-memory cache for /api/stats, refreshed by cron and on demand.
	statsMu    sync.RWMutex
	statsCache *statsCache
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		backend:  opts.Backend,
		overlay:  opts.Overlay,
		now:      opts.Now,
		mux:      http.NewServeMux(),
		cfg:      cfg,
		sessions: make(map[string]*calendar.Session),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// SetConfig swaps the configuration after a reload. Existing sessions keep
// the options they were created with.
func (s *Server) SetConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Server) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Server) resolver() bucket.Resolver {
	return bucket.New(s.config().Location())
}

func (s *Server) notesManager() *notes.Manager {
	return notes.NewManager(s.backend, s.resolver())
}

func (s *Server) overlayNotes() []model.CalendarNote {
	if s.overlay == nil {
		return nil
	}
	return s.overlay.Notes()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/view", s.withSession(s.handleView))
	s.mux.HandleFunc("POST /api/sessions/{id}/expand/{parent}", s.withSession(s.handleExpand))
	s.mux.HandleFunc("POST /api/sessions/{id}/drag/{action}", s.withSession(s.handleDrag))
	s.mux.HandleFunc("POST /api/sessions/{id}/popover/{action}", s.withSession(s.handlePopover))
	s.mux.HandleFunc("GET /api/sessions/{id}/search/products", s.withSession(s.handleSearchProducts))

	s.mux.HandleFunc("GET /api/items/{id}", s.handleItem)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleExport)

	s.mux.HandleFunc("GET /api/notes", s.handleListNotes)
	s.mux.HandleFunc("POST /api/notes", s.handleCreateNote)
	s.mux.HandleFunc("PATCH /api/notes/{id}", s.handleUpdateNote)
	s.mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)
	s.mux.HandleFunc("GET /api/notes/{id}/draft", s.handleNoteDraft)

	s.mux.HandleFunc("GET /api/stats", s.handleStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.backend.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// statusFor maps an error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var se *api.StatusError
	switch {
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, calendar.ErrClosed):
		return http.StatusGone, err.Error()
	case errors.Is(err, notes.ErrReadOnly):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, calendar.ErrSuperseded),
		errors.Is(err, search.ErrStale),
		errors.Is(err, drag.ErrRequestPending):
		return http.StatusConflict, err.Error()
	case errors.Is(err, errBadBody),
		errors.Is(err, calendar.ErrInvalidRequest),
		errors.Is(err, drag.ErrNotDragging),
		errors.Is(err, drag.ErrInvalidTarget),
		errors.Is(err, notes.ErrEmptyText),
		errors.Is(err, notes.ErrInvalidDate),
		errors.Is(err, notes.ErrInvalidVisibility),
		errors.Is(err, notes.ErrInvalidColor):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request canceled"
	case errors.Is(err, api.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, api.ErrUnavailable), errors.As(err, &se):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeErr(w http.ResponseWriter, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "status", code)
	} else {
		appLog.Debug("request rejected", "status", code, "err", err)
	}
	writeError(w, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// popoverSize converts the configured geometry.
func popoverSize(c config.PopoverConfig) (popover.Size, float64) {
	return popover.Size{W: float64(c.Width), H: float64(c.Height)}, float64(c.Margin)
}
