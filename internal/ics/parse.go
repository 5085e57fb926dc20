package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "contentcal/internal/log"
)

// Event is a VEVENT reduced to what the overlay needs. Recurrence is
// recorded here and expanded by Expand.
type Event struct {
	SourceID string

	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on overrides of a single recurring instance.
	RecurrenceID *time.Time
}

// IsOverride reports whether e replaces one instance of a recurring event.
func (e Event) IsOverride() bool { return e.RecurrenceID != nil }

// Parse decodes one feed body. Broken VEVENTs are skipped and logged at
// debug; only an unreadable calendar fails the whole feed.
func Parse(src Source, body []byte) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(src, ve)
		if err != nil {
			appLog.Debug("ics vevent skipped", "id", src.ID, "err", err)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (Event, error) {
	out := Event{SourceID: src.ID}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return out, err
		}
		out.Start = dateOnly(start)
		out.End = out.Start.AddDate(0, 0, 1)
		if end, err := ve.GetAllDayEndAt(); err == nil && dateOnly(end).After(out.Start) {
			out.End = dateOnly(end)
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		out.End = start
		if end, err := ve.GetEndAt(); err == nil && end.After(start) {
			out.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, out.Start.Location()); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// isDateValue detects VALUE=DATE or a bare yyyyMMdd value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// dateOnly keeps the calendar date of t as UTC midnight. All-day values
// carry no zone, so the date is the only meaningful part.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseICSTime handles the basic UTC, floating and date forms used by
// EXDATE and RECURRENCE-ID. Floating times are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		t, err := time.Parse("20060102", v)
		if err != nil {
			return t, err
		}
		return dateOnly(t), nil
	}
}
