package calendar

import (
	"fmt"
	"strings"
	"time"

	"contentcal/internal/bucket"
)

// ViewKind selects one of the four grids.
type ViewKind string

const (
	ViewMonth  ViewKind = "month"
	ViewWeek   ViewKind = "week"
	ViewDay    ViewKind = "day"
	ViewAgenda ViewKind = "agenda"
)

// ParseViewKind accepts the four view names, case-insensitively. The empty
// string means month.
func ParseViewKind(s string) (ViewKind, error) {
	switch v := ViewKind(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewMonth, nil
	case ViewMonth, ViewWeek, ViewDay, ViewAgenda:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// Navigation is what the mini date picker and the prev/next/today buttons
// produce: a view and a cursor day at local midnight.
type Navigation struct {
	View   ViewKind
	Cursor time.Time
}

// Step moves the cursor by the view's natural unit: a month, a week or a
// day. The agenda steps by a week.
func (n Navigation) Step(r bucket.Resolver, dir int) Navigation {
	c := r.StartOfDay(n.Cursor)
	switch n.View {
	case ViewMonth:
		// Land on the 1st so that Jan 31 + 1 month is February, not March.
		c = time.Date(c.Year(), c.Month()+time.Month(dir), 1, 0, 0, 0, 0, r.Location())
	case ViewDay:
		c = r.AddDays(c, dir)
	default:
		c = r.AddDays(c, 7*dir)
	}
	return Navigation{View: n.View, Cursor: c}
}

func (n Navigation) Next(r bucket.Resolver) Navigation { return n.Step(r, 1) }
func (n Navigation) Prev(r bucket.Resolver) Navigation { return n.Step(r, -1) }

// Today jumps to now, keeping the view.
func (n Navigation) Today(r bucket.Resolver, now time.Time) Navigation {
	return Navigation{View: n.View, Cursor: r.StartOfDay(now)}
}

// Range is the inclusive span of days the view displays.
func (n Navigation) Range(r bucket.Resolver, weekStart time.Weekday, agendaDays int) (from, to time.Time) {
	c := r.StartOfDay(n.Cursor)
	switch n.View {
	case ViewMonth:
		return r.StartOfWeek(r.StartOfMonth(c), weekStart), r.EndOfWeek(r.EndOfMonth(c), weekStart)
	case ViewWeek:
		return r.StartOfWeek(c, weekStart), r.EndOfWeek(c, weekStart)
	case ViewDay:
		return c, c
	default:
		if agendaDays <= 0 {
			agendaDays = DefaultAgendaDays
		}
		return c, r.AddDays(c, agendaDays-1)
	}
}
