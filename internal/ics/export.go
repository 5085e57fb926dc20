package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"contentcal/internal/bucket"
	"contentcal/internal/model"
)

// TimedDuration is the length given to timed items, which are instants
// upstream.
const TimedDuration = 30 * time.Minute

// ExportOptions names the feed and stamps its events.
type ExportOptions struct {
	Name string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
	// URL is a per-item link template; "{id}" is replaced by the item id.
	URL string
}

// Export writes items as an iCalendar feed. Undated and unparseable items
// are left out. All-day items become VALUE=DATE events on their local day.
func Export(w io.Writer, items []model.ContentItem, r bucket.Resolver, opts ExportOptions) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Name == "" {
		opts.Name = "Content calendar"
	}

	cal := ical.NewCalendarFor("contentcal")
	cal.SetMethod(ical.MethodPublish)
	cal.SetName(opts.Name)
	cal.SetXWRCalName(opts.Name)
	cal.SetXWRTimezone(r.Location().String())

	for _, it := range items {
		t, ok := r.EffectiveDate(it)
		if !ok {
			continue
		}
		ev := cal.AddEvent(it.ID + "@contentcal")
		ev.SetDtStampTime(opts.Now)
		ev.SetSummary(it.Title)
		ev.SetDescription(describe(it))
		ev.SetStatus(statusOf(it.Status))
		if it.Brand != "" {
			ev.AddCategory(it.Brand)
		}
		if it.Platform != "" {
			ev.AddCategory(it.Platform)
		}
		if opts.URL != "" {
			ev.SetURL(strings.ReplaceAll(opts.URL, "{id}", it.ID))
		}

		if r.ItemIsAllDay(it) {
			day := r.StartOfDay(t)
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(r.AddDays(day, 1))
			continue
		}
		ev.SetStartAt(t)
		ev.SetEndAt(t.Add(TimedDuration))
	}

	return cal.SerializeTo(w)
}

func describe(it model.ContentItem) string {
	var b strings.Builder
	line := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	line("Brand", it.Brand)
	line("Product", it.Product)
	line("Platform", it.Platform)
	line("Status", string(it.Status))
	line("Assignee", it.Assignee)
	return strings.TrimSuffix(b.String(), "\n")
}

func statusOf(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusApproved, model.StatusScheduled, model.StatusPublished:
		return ical.ObjectStatusConfirmed
	default:
		return ical.ObjectStatusTentative
	}
}
