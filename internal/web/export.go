package web

import (
	"bytes"
	"net/http"
	"strings"

	"contentcal/internal/api"
	"contentcal/internal/filter"
	"contentcal/internal/ics"
	"contentcal/internal/notes"
)

const (
	exportPastDays   = 30
	exportFutureDays = 90
)

// handleExport serves the filtered, dated items as an iCalendar feed.
//
// GET /api/calendar.ics?from=yyyy-MM-dd&to=yyyy-MM-dd&brand=&platform=&status=&assignee=
//   - from: default today-30
//   - to:   default today+90
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rs := s.resolver()
	today := rs.StartOfDay(s.now())

	from := rs.AddDays(today, -parseIntDefault(q.Get("past_days"), exportPastDays))
	to := rs.AddDays(today, parseIntDefault(q.Get("future_days"), exportFutureDays))
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, ok := rs.ParseDay(v)
		if !ok {
			writeErr(w, notes.ErrInvalidDate)
			return
		}
		from = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, ok := rs.ParseDay(v)
		if !ok {
			writeErr(w, notes.ErrInvalidDate)
			return
		}
		to = d
	}

	f := filter.FromQuery(q)
	items, err := s.backend.ListCalendarItems(r.Context(), api.ItemQuery{
		Filters: f,
		From:    rs.DayKey(from),
		To:      rs.DayKey(to),
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	// The upstream range filter is advisory; keep only items whose day is
	// inside [from, to].
	items = filter.Apply(items, f)
	kept := items[:0]
	for _, it := range items {
		t, ok := rs.EffectiveDate(it)
		if !ok {
			continue
		}
		d := rs.StartOfDay(t)
		if d.Before(from) || d.After(to) {
			continue
		}
		kept = append(kept, it)
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, kept, rs, ics.ExportOptions{Name: "Content calendar", Now: s.now()}); err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
