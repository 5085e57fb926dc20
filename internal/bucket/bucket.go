// Package bucket decides which calendar day or hour a content item or note
// belongs to. Everything here is pure; the display timezone is carried by
// Resolver.
package bucket

import (
	"strings"
	"time"

	"contentcal/internal/model"
)

const dateOnlyLayout = "2006-01-02"

// Layouts accepted for timed values without an explicit zone. These are
// interpreted in the display location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Resolver buckets items relative to a display location.
type Resolver struct {
	loc *time.Location
}

// New returns a Resolver for loc. A nil loc means time.Local.
func New(loc *time.Location) Resolver {
	if loc == nil {
		loc = time.Local
	}
	return Resolver{loc: loc}
}

// Location returns the display location.
func (r Resolver) Location() *time.Location {
	if r.loc == nil {
		return time.Local
	}
	return r.loc
}

// Parse converts a raw upstream date string into a display-local time.
//
// Date-only strings become local midnight of that date. Instants whose UTC
// clock reads midnight are the upstream's encoding of a bare date, so they
// also become local midnight of their UTC date rather than drifting into
// the previous or next local day.
func (r Resolver) Parse(raw string) (time.Time, bool) {
	loc := r.Location()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if len(raw) == len(dateOnlyLayout) {
		t, err := time.ParseInLocation(dateOnlyLayout, raw, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		if isMidnight(t.UTC()) {
			u := t.UTC()
			return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, loc), true
		}
		return t.In(loc), true
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EffectiveRaw returns publish_date when present, else due_date. A present
// but unparseable publish_date still wins: the item is then unplaceable
// rather than silently falling back to its due date.
func (r Resolver) EffectiveRaw(it model.ContentItem) (string, bool) {
	if it.PublishDate != nil && strings.TrimSpace(*it.PublishDate) != "" {
		return *it.PublishDate, true
	}
	if it.DueDate != nil && strings.TrimSpace(*it.DueDate) != "" {
		return *it.DueDate, true
	}
	return "", false
}

// EffectiveDate returns the time used to place it on any grid.
func (r Resolver) EffectiveDate(it model.ContentItem) (time.Time, bool) {
	raw, ok := r.EffectiveRaw(it)
	if !ok {
		return time.Time{}, false
	}
	return r.Parse(raw)
}

// IsAllDay reports whether raw carries no meaningful time of day: a
// date-only string, a UTC-midnight instant, or an instant that reads
// 00:00:00 on the local clock.
func (r Resolver) IsAllDay(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) == len(dateOnlyLayout) {
		_, err := time.Parse(dateOnlyLayout, raw)
		return err == nil
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		if isMidnight(t.UTC()) {
			return true
		}
		return isMidnight(t.In(r.Location()))
	}

	t, ok := r.Parse(raw)
	if !ok {
		return false
	}
	return isMidnight(t)
}

// ItemIsAllDay applies IsAllDay to the item's effective raw date.
func (r Resolver) ItemIsAllDay(it model.ContentItem) bool {
	raw, ok := r.EffectiveRaw(it)
	if !ok {
		return false
	}
	return r.IsAllDay(raw)
}

// BucketForDay reports whether it falls on the local calendar day of day.
func (r Resolver) BucketForDay(it model.ContentItem, day time.Time) bool {
	t, ok := r.EffectiveDate(it)
	if !ok {
		return false
	}
	return r.SameDay(t, day)
}

// BucketForHour reports whether it is a timed item on day at local hour.
func (r Resolver) BucketForHour(it model.ContentItem, day time.Time, hour int) bool {
	t, ok := r.EffectiveDate(it)
	if !ok || !r.SameDay(t, day) {
		return false
	}
	if r.ItemIsAllDay(it) {
		return false
	}
	return t.Hour() == hour
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}
