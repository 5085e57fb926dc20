package web

import (
	"net/http"

	"github.com/google/uuid"

	"contentcal/internal/api"
	"contentcal/internal/calendar"
	"contentcal/internal/drag"
	"contentcal/internal/filter"
	appLog "contentcal/internal/log"
	"contentcal/internal/popover"
)

type sessionResponse struct {
	ID string `json:"id"`
}

type itemRef struct {
	ItemID string `json:"item_id"`
}

type popoverOpenRequest struct {
	ItemID   string       `json:"item_id"`
	Anchor   popover.Rect `json:"anchor"`
	Viewport popover.Size `json:"viewport"`
}

type popoverKeyRequest struct {
	Key string `json:"key"`
}

type closedResponse struct {
	Closed bool `json:"closed"`
}

type expandResponse struct {
	Expanded []string `json:"expanded"`
}

type productsResponse struct {
	Products []api.Product `json:"products"`
}

func (s *Server) sessionOptions() calendar.Options {
	cfg := s.config()
	size, margin := popoverSize(cfg.Calendar.Popover)
	return calendar.Options{
		Resolver:       s.resolver(),
		WeekStart:      cfg.WeekStartDay(),
		MonthCellLimit: cfg.Calendar.MonthCellLimit,
		StartHour:      cfg.Calendar.DayStartHour,
		EndHour:        cfg.Calendar.DayEndHour,
		RowHeight:      cfg.Calendar.RowHeight,
		AgendaDays:     calendar.DefaultAgendaDays,
		PopoverSize:    size,
		PopoverMargin:  margin,
		SearchDebounce: cfg.Calendar.SearchDebounce,
		Overlay:        s.overlayNotes,
		Now:            s.now,
	}
}

// NewSession registers a calendar session, as done when a calendar mounts.
func (s *Server) NewSession() *calendar.Session {
	sess := calendar.NewSession(uuid.NewString(), s.backend, s.sessionOptions())
	s.sessMu.Lock()
	s.sessions[sess.ID()] = sess
	s.sessMu.Unlock()
	appLog.Debug("calendar session created", "id", sess.ID())
	return sess
}

func (s *Server) session(id string) (*calendar.Session, bool) {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// DropSession closes and forgets a session.
func (s *Server) DropSession(id string) bool {
	s.sessMu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.sessMu.Unlock()
	if ok {
		sess.Close()
	}
	return ok
}

// EvictIdle closes sessions unused for longer than the configured TTL and
// returns how many were evicted.
func (s *Server) EvictIdle() int {
	ttl := s.config().Calendar.SessionTTL
	cutoff := s.now().Add(-ttl)

	s.sessMu.Lock()
	var idle []*calendar.Session
	for id, sess := range s.sessions {
		if sess.LastUsed().Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.sessMu.Unlock()

	for _, sess := range idle {
		sess.Close()
	}
	if len(idle) > 0 {
		appLog.Info("evicted idle calendar sessions", "count", len(idle), "ttl", ttl.String())
	}
	return len(idle)
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	return len(s.sessions)
}

// withSession resolves {id} or answers 404.
func (s *Server) withSession(fn func(http.ResponseWriter, *http.Request, *calendar.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fn(w, r, sess)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.NewSession()
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.DropSession(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	q := r.URL.Query()
	req := calendar.ViewRequest{
		Date: q.Get("date"),
		Step: q.Get("step"),
	}
	if v := q.Get("view"); v != "" {
		view, err := calendar.ParseViewKind(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.View = view
	}
	if q.Has("brand") || q.Has("platform") || q.Has("status") || q.Has("assignee") {
		f := filter.FromQuery(q)
		req.Filters = &f
	}

	frame, err := sess.Render(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	expanded, err := sess.ToggleExpand(r.PathValue("parent"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expandResponse{Expanded: expanded})
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	var (
		snap drag.Snapshot
		err  error
	)
	switch r.PathValue("action") {
	case "start":
		var in itemRef
		if err := decodeJSON(w, r, &in); err != nil {
			writeErr(w, err)
			return
		}
		snap, err = sess.DragStart(in.ItemID)
	case "enter":
		var t drag.Target
		if err := decodeJSON(w, r, &t); err != nil {
			writeErr(w, err)
			return
		}
		snap, err = sess.DragEnter(t)
	case "leave":
		snap, err = sess.DragLeave()
	case "end":
		snap, err = sess.DragEnd()
	case "drop":
		var t drag.Target
		if err := decodeJSON(w, r, &t); err != nil {
			writeErr(w, err)
			return
		}
		res, err := sess.DragDrop(r.Context(), t)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePopover(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	switch r.PathValue("action") {
	case "open":
		var in popoverOpenRequest
		if err := decodeJSON(w, r, &in); err != nil {
			writeErr(w, err)
			return
		}
		layout, err := sess.OpenPopover(in.ItemID, in.Anchor, in.Viewport)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, layout)
	case "close":
		if err := sess.ClosePopover(); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, closedResponse{Closed: true})
	case "key":
		var in popoverKeyRequest
		if err := decodeJSON(w, r, &in); err != nil {
			writeErr(w, err)
			return
		}
		closed, err := sess.PopoverKey(in.Key)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, closedResponse{Closed: closed})
	case "click":
		var p popover.Point
		if err := decodeJSON(w, r, &p); err != nil {
			writeErr(w, err)
			return
		}
		closed, err := sess.PopoverClick(p)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, closedResponse{Closed: closed})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request, sess *calendar.Session) {
	ps, err := sess.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productsResponse{Products: ps})
}
