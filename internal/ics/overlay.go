package ics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	appLog "contentcal/internal/log"
	"contentcal/internal/model"
)

const (
	// maxSpanDays bounds how many day notes one multi-day event produces.
	maxSpanDays = 31

	defaultPastDays   = 90
	defaultFutureDays = 365
)

// Overlay holds the read-only notes derived from subscribed feeds. Notes
// of a feed that fails to refresh are kept from its last good fetch.
type Overlay struct {
	fetcher *Fetcher

	PastDays   int
	FutureDays int

	mu        sync.RWMutex
	loc       *time.Location
	sources   []Source
	bySource  map[string][]model.CalendarNote
	refreshed time.Time
}

func NewOverlay(fetcher *Fetcher, sources []Source, loc *time.Location) *Overlay {
	if loc == nil {
		loc = time.Local
	}
	return &Overlay{
		fetcher:    fetcher,
		loc:        loc,
		PastDays:   defaultPastDays,
		FutureDays: defaultFutureDays,
		sources:    append([]Source(nil), sources...),
		bySource:   make(map[string][]model.CalendarNote),
	}
}

// SetSources replaces the subscribed feeds, e.g. after a config reload.
// Notes of removed feeds disappear immediately.
func (o *Overlay) SetSources(sources []Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources = append([]Source(nil), sources...)
	keep := make(map[string]bool, len(sources))
	for _, s := range sources {
		keep[s.ID] = true
	}
	for id := range o.bySource {
		if !keep[id] {
			delete(o.bySource, id)
		}
	}
}

// SetLocation changes the zone notes are placed in. It takes effect on the
// next Refresh.
func (o *Overlay) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	o.mu.Lock()
	o.loc = loc
	o.mu.Unlock()
}

// Refresh re-fetches every feed and rebuilds its notes for the window
// around now. The returned error joins the per-feed failures.
func (o *Overlay) Refresh(ctx context.Context, now time.Time) error {
	o.mu.RLock()
	sources := append([]Source(nil), o.sources...)
	loc := o.loc
	o.mu.RUnlock()

	if len(sources) == 0 {
		return nil
	}

	n := now.In(loc)
	day := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	w := Window{
		From:     day.AddDate(0, 0, -o.PastDays),
		To:       day.AddDate(0, 0, o.FutureDays+1),
		Location: loc,
	}

	results, errs := o.fetcher.FetchAll(ctx, sources)
	fresh := make(map[string][]model.CalendarNote, len(results))
	for _, res := range results {
		events, err := Parse(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		exp, err := Expand(events, w)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fresh[res.Source.ID] = ToNotes(res.Source, exp.Occurrences, w, loc)
	}

	o.mu.Lock()
	for id, ns := range fresh {
		o.bySource[id] = ns
	}
	o.refreshed = now
	total := 0
	for _, ns := range o.bySource {
		total += len(ns)
	}
	o.mu.Unlock()

	appLog.Info("ics overlay refreshed", "sources", len(sources), "ok", len(fresh), "notes", total)
	return errors.Join(errs...)
}

// Notes returns every overlay note sorted by date.
func (o *Overlay) Notes() []model.CalendarNote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.CalendarNote, 0)
	for _, ns := range o.bySource {
		out = append(out, ns...)
	}
	sortNotes(out)
	return out
}

// Refreshed is the time of the last Refresh call.
func (o *Overlay) Refreshed() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.refreshed
}

// ToNotes turns occurrences into read-only team notes. All-day events
// produce one note per covered day; timed events produce one note on their
// local start day with an "HH:MM " prefix.
func ToNotes(src Source, occ []Occurrence, w Window, loc *time.Location) []model.CalendarNote {
	if loc == nil {
		loc = time.Local
	}
	color := paletteColor(src.Color)
	author := src.Name
	if author == "" {
		author = src.ID
	}
	from, to := w.dates()

	out := make([]model.CalendarNote, 0, len(occ))
	add := func(id, date, text string) {
		n := model.CalendarNote{
			ID:         model.OverlayNoteIDPrefix + src.ID + ":" + id,
			Date:       date,
			Text:       text,
			Visibility: model.VisibilityTeam,
			CreatedBy:  author,
			Source:     src.ID,
			ReadOnly:   true,
		}
		if color != nil {
			c := *color
			n.Color = &c
		}
		out = append(out, n)
	}

	for _, o := range occ {
		if o.AllDay {
			end := o.End
			if !end.After(o.Start) {
				end = o.Start.AddDate(0, 0, 1)
			}
			for d, i := o.Start, 0; d.Before(end) && i < maxSpanDays; d, i = d.AddDate(0, 0, 1), i+1 {
				if d.Before(from) || !d.Before(to) {
					continue
				}
				date := d.Format("2006-01-02")
				add(o.UID+":"+date, date, o.Summary)
			}
			continue
		}
		local := o.Start.In(loc)
		add(o.UID+":"+local.Format("20060102T1504"), local.Format("2006-01-02"), local.Format("15:04")+" "+o.Summary)
	}
	sortNotes(out)
	return out
}

func paletteColor(name string) *model.NoteColor {
	c := model.NoteColor(strings.ToLower(strings.TrimSpace(name)))
	for _, v := range model.NoteColors {
		if v == c {
			return &c
		}
	}
	return nil
}

func sortNotes(ns []model.CalendarNote) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Date != ns[j].Date {
			return ns[i].Date < ns[j].Date
		}
		if ns[i].Text != ns[j].Text {
			return ns[i].Text < ns[j].Text
		}
		return ns[i].ID < ns[j].ID
	})
}
