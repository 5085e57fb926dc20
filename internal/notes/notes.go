// Package notes overlays free-form calendar notes onto the day and month
// grids and validates note mutations before they reach the notes API.
package notes

import (
	"strings"
	"time"

	"contentcal/internal/bucket"
	"contentcal/internal/model"
)

// ForDay returns the notes whose date falls on day, in collection order.
// Notes with a malformed date belong to no day. The result is never nil.
func ForDay(notes []model.CalendarNote, day time.Time, r bucket.Resolver) []model.CalendarNote {
	out := make([]model.CalendarNote, 0)
	for _, n := range notes {
		t, ok := parseDate(n.Date, r)
		if !ok {
			continue
		}
		if r.SameDay(t, day) {
			out = append(out, n)
		}
	}
	return out
}

// parseDate accepts a bare yyyy-MM-dd as well as a full timestamp, keeping
// only the calendar day.
func parseDate(raw string, r bucket.Resolver) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, ok := r.ParseDay(raw); ok {
		return t, true
	}
	t, ok := r.Parse(raw)
	if !ok {
		return time.Time{}, false
	}
	return r.StartOfDay(t), true
}

// DraftFromNote seeds the item creation form from a note. Only the date and
// a title drawn from the first line of text are carried over.
func DraftFromNote(n model.CalendarNote, r bucket.Resolver) model.ItemDraft {
	d := model.ItemDraft{Status: model.StatusIdea}
	if t, ok := parseDate(n.Date, r); ok {
		d.PublishDate = r.DayKey(t)
	}
	title := strings.TrimSpace(n.Text)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if len([]rune(title)) > maxDraftTitle {
		title = string([]rune(title)[:maxDraftTitle])
	}
	d.Title = title
	return d
}

const maxDraftTitle = 120

// Merge appends overlay notes after user notes. Overlay notes are forced
// read-only.
func Merge(user, overlay []model.CalendarNote) []model.CalendarNote {
	out := make([]model.CalendarNote, 0, len(user)+len(overlay))
	out = append(out, user...)
	for _, n := range overlay {
		n.ReadOnly = true
		out = append(out, n)
	}
	return out
}
