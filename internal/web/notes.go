package web

import (
	"context"
	"net/http"
	"strings"

	"contentcal/internal/api"
	"contentcal/internal/model"
	"contentcal/internal/notes"
)

type notesResponse struct {
	Notes []notes.Styled `json:"notes"`
}

func styled(n model.CalendarNote) notes.Styled {
	return notes.Style([]model.CalendarNote{n})[0]
}

// overlayBetween keeps feed notes within [from, to]; empty bounds are open.
func (s *Server) overlayBetween(from, to string) []model.CalendarNote {
	out := make([]model.CalendarNote, 0)
	for _, n := range s.overlayNotes() {
		if from != "" && n.Date < from {
			continue
		}
		if to != "" && n.Date > to {
			continue
		}
		out = append(out, n)
	}
	return out
}

// GET /api/notes?from=yyyy-MM-dd&to=yyyy-MM-dd
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	rs := s.resolver()
	for _, d := range []string{from, to} {
		if _, ok := rs.ParseDay(d); d != "" && !ok {
			writeErr(w, notes.ErrInvalidDate)
			return
		}
	}

	user, err := s.notesManager().List(r.Context(), from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	merged := notes.Merge(user, s.overlayBetween(from, to))

	writeJSON(w, http.StatusOK, notesResponse{Notes: notes.Style(merged)})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var in api.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, err)
		return
	}
	n, err := s.notesManager().Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, styled(n))
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var p api.NotePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeErr(w, err)
		return
	}
	n, err := s.notesManager().Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, styled(n))
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.notesManager().Delete(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNoteDraft seeds the item creation form from a note.
func (s *Server) handleNoteDraft(w http.ResponseWriter, r *http.Request) {
	n, err := s.findNote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes.DraftFromNote(n, s.resolver()))
}

// findNote looks id up among feed notes, then user notes. The notes API
// has no single-note read.
func (s *Server) findNote(ctx context.Context, id string) (model.CalendarNote, error) {
	if strings.HasPrefix(id, model.OverlayNoteIDPrefix) {
		for _, n := range s.overlayNotes() {
			if n.ID == id {
				return n, nil
			}
		}
		return model.CalendarNote{}, api.ErrNotFound
	}
	user, err := s.notesManager().List(ctx, "", "")
	if err != nil {
		return model.CalendarNote{}, err
	}
	for _, n := range user {
		if n.ID == id {
			return n, nil
		}
	}
	return model.CalendarNote{}, api.ErrNotFound
}
