package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "contentcal/internal/log"
)

const defaultMaxOccurrences = 1000

// Occurrence is one concrete instance of a feed event. All-day
// occurrences carry UTC-midnight dates with End exclusive.
type Occurrence struct {
	SourceID string
	UID      string
	Summary  string
	AllDay   bool
	Start    time.Time
	End      time.Time
}

// Window bounds an expansion: [From, To) as instants. All-day events are
// compared by the calendar dates of From and To in Location.
type Window struct {
	From     time.Time
	To       time.Time
	Location *time.Location
	// MaxOccurrences caps each recurring event; zero means 1000.
	MaxOccurrences int
}

func (w Window) dates() (from, to time.Time) {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	return dateOnly(w.From.In(loc)), dateOnly(w.To.In(loc))
}

func (w Window) overlaps(allDay bool, start, end time.Time) bool {
	from, to := w.From, w.To
	if allDay {
		from, to = w.dates()
	}
	if !start.Before(to) {
		return false
	}
	if end.Equal(start) {
		return !start.Before(from)
	}
	return end.After(from)
}

// ExpandResult lists occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences []Occurrence
	Truncated   []string
}

// Expand turns parsed events into occurrences inside w. It handles single
// events, RRULE recurrence, EXDATE removal and RECURRENCE-ID overrides.
func Expand(events []Event, w Window) (ExpandResult, error) {
	var res ExpandResult
	if w.To.Before(w.From) {
		return res, errors.New("ics: window ends before it starts")
	}
	if w.MaxOccurrences <= 0 {
		w.MaxOccurrences = defaultMaxOccurrences
	}

	base := make([]Event, 0, len(events))
	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	res.Occurrences = make([]Occurrence, 0)
	for _, ev := range base {
		if ev.RRule == "" {
			if w.overlaps(ev.AllDay, ev.Start, ev.End) {
				res.Occurrences = append(res.Occurrences, occurrenceOf(ev, ev.Start, ev.End))
			}
			continue
		}
		occ, capped := expandRecurring(ev, overrides[ev.UID], w)
		if capped {
			res.Truncated = append(res.Truncated, ev.UID)
			appLog.Warn("ics recurrence truncated", "uid", ev.UID, "cap", w.MaxOccurrences)
		}
		res.Occurrences = append(res.Occurrences, occ...)
	}
	return res, nil
}

func expandRecurring(ev Event, overrides []Event, w Window) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Debug("ics rrule skipped", "uid", ev.UID, "rrule", ev.RRule, "err", err)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	from, to := w.From, w.To
	if ev.AllDay {
		from, to = w.dates()
	}
	// Widen by the duration so instances already running at From count.
	from = from.Add(-dur)
	starts := set.Between(from.In(ev.Start.Location()), to.In(ev.Start.Location()), true)

	capped := false
	if len(starts) > w.MaxOccurrences {
		starts = starts[:w.MaxOccurrences]
		capped = true
	}

	for _, s := range starts {
		e := s.Add(dur)
		inst := ev
		if ov, ok := findOverride(overrides, s); ok {
			inst, s, e = ov, ov.Start, ov.End
		}
		if !w.overlaps(inst.AllDay, s, e) {
			continue
		}
		out = append(out, occurrenceOf(inst, s, e))
	}
	return out, capped
}

func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return Event{}, false
}

func occurrenceOf(ev Event, start, end time.Time) Occurrence {
	return Occurrence{
		SourceID: ev.SourceID,
		UID:      ev.UID,
		Summary:  ev.Summary,
		AllDay:   ev.AllDay,
		Start:    start,
		End:      end,
	}
}
