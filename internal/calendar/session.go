// Package calendar owns the interaction state of one mounted calendar:
// navigation, filters, expand/collapse, the drag session, the detail
// popover and the product picker search.
//
// A Session behaves like a UI event loop. Every event runs under the
// session lock; work that must not happen during a render pass is queued
// with later and runs once the pass is complete, after which the view is
// derived again. Network calls run outside the lock and their results are
// dropped when a newer fetch has been issued in the meantime.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"contentcal/internal/api"
	"contentcal/internal/bucket"
	"contentcal/internal/drag"
	"contentcal/internal/filter"
	"contentcal/internal/grouping"
	appLog "contentcal/internal/log"
	"contentcal/internal/model"
	"contentcal/internal/notes"
	"contentcal/internal/popover"
	"contentcal/internal/search"
	"contentcal/internal/views"
)

// DefaultAgendaDays is how many days the agenda lists from its cursor.
const DefaultAgendaDays = 7

var (
	// ErrSuperseded means a newer fetch was issued while this one ran.
	ErrSuperseded = errors.New("view request superseded")
	// ErrClosed is returned by every event once the session is closed.
	ErrClosed = errors.New("calendar session closed")
	// ErrInvalidRequest wraps malformed view requests.
	ErrInvalidRequest = errors.New("invalid view request")
)

// Options configures a Session.
type Options struct {
	Resolver       bucket.Resolver
	WeekStart      time.Weekday
	MonthCellLimit int
	StartHour      int
	EndHour        int
	RowHeight      int
	AgendaDays     int
	PopoverSize    popover.Size
	PopoverMargin  float64
	SearchDebounce time.Duration

	// Overlay returns read-only notes from subscribed feeds. May be nil.
	Overlay func() []model.CalendarNote
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is the state behind one calendar mount.
type Session struct {
	id      string
	backend api.Backend
	opts    Options
	r       bucket.Resolver

	drag    *drag.Controller
	popover *popover.State
	search  *search.Debouncer[[]api.Product]

	mu       sync.Mutex
	closed   bool
	nav      Navigation
	filters  model.Filters
	tracker  *grouping.Tracker
	tasks    []func() bool
	fetchGen uint64
	items    []model.ContentItem
	notes    []model.CalendarNote
	lastUsed time.Time
}

// NewSession returns a session showing the month containing now.
func NewSession(id string, backend api.Backend, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AgendaDays <= 0 {
		opts.AgendaDays = DefaultAgendaDays
	}
	s := &Session{
		id:       id,
		backend:  backend,
		opts:     opts,
		r:        opts.Resolver,
		popover:  popover.NewState(opts.PopoverSize, opts.PopoverMargin),
		tracker:  grouping.NewTracker(),
		lastUsed: opts.Now(),
	}
	s.nav = Navigation{View: ViewMonth, Cursor: s.r.StartOfDay(opts.Now())}
	s.drag = drag.New(s.r, backend, s.refetch)
	s.search = search.NewDebouncer[[]api.Product](opts.SearchDebounce, backend.SearchProducts)
	return s
}

func (s *Session) ID() string { return s.id }

// LastUsed is the time of the most recent event.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// ViewRequest is one render event. Empty fields keep the current value.
type ViewRequest struct {
	View    ViewKind
	Date    string
	Step    string
	Filters *model.Filters
}

// Frame is a rendered view plus the interaction state the client needs to
// draw it.
type Frame struct {
	View     ViewKind         `json:"view"`
	Date     string           `json:"date"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Filters  model.Filters    `json:"filters"`
	Month    *views.MonthGrid `json:"month,omitempty"`
	Week     *views.WeekView  `json:"week,omitempty"`
	Day      *views.DayView   `json:"day,omitempty"`
	Agenda   *views.Agenda    `json:"agenda,omitempty"`
	Expanded []string         `json:"expanded"`
	Drag     drag.Snapshot    `json:"drag"`
	Popover  *popover.Layout  `json:"popover,omitempty"`
}

// Render applies req, fetches fresh items and notes for the visible range
// and derives the view from scratch.
func (s *Session) Render(ctx context.Context, req ViewRequest) (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, ErrClosed
	}
	if err := s.applyLocked(req); err != nil {
		s.mu.Unlock()
		return Frame{}, err
	}
	s.touchLocked()
	s.fetchGen++
	gen, nav, filters := s.fetchGen, s.nav, s.filters
	s.mu.Unlock()

	items, ns, err := s.fetch(ctx, nav, filters)
	if err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.fetchGen {
		return Frame{}, ErrSuperseded
	}
	s.items, s.notes = items, ns
	return s.frameLocked(), nil
}

func (s *Session) applyLocked(req ViewRequest) error {
	if req.View != "" {
		s.nav.View = req.View
	}
	if req.Date != "" {
		d, ok := s.r.ParseDay(req.Date)
		if !ok {
			return fmt.Errorf("%w: date %q", ErrInvalidRequest, req.Date)
		}
		s.nav.Cursor = d
	}
	switch strings.ToLower(req.Step) {
	case "":
	case "next":
		s.nav = s.nav.Next(s.r)
	case "prev":
		s.nav = s.nav.Prev(s.r)
	case "today":
		s.nav = s.nav.Today(s.r, s.opts.Now())
	default:
		return fmt.Errorf("%w: step %q", ErrInvalidRequest, req.Step)
	}
	if req.Filters != nil {
		s.filters = *req.Filters
	}
	return nil
}

// frameLocked derives the view, lets queued work run, and derives again
// if that work changed state.
func (s *Session) frameLocked() Frame {
	f := s.deriveLocked()
	if s.flushLocked() {
		f = s.deriveLocked()
	}
	return f
}

// deriveLocked is the render pass. It reads session state but only queues
// changes.
func (s *Session) deriveLocked() Frame {
	visible := filter.Apply(s.items, s.filters)
	in := views.Input{
		Items:     visible,
		Notes:     s.notes,
		Resolver:  s.r,
		Now:       s.opts.Now(),
		WeekStart: s.opts.WeekStart,
	}
	from, to := s.nav.Range(s.r, s.opts.WeekStart, s.opts.AgendaDays)

	f := Frame{
		View:    s.nav.View,
		Date:    s.r.DayKey(s.nav.Cursor),
		From:    s.r.DayKey(from),
		To:      s.r.DayKey(to),
		Filters: s.filters,
		Drag:    s.drag.Snapshot(),
	}
	switch s.nav.View {
	case ViewMonth:
		g := views.BuildMonth(in, s.nav.Cursor, views.MonthOptions{CellLimit: s.opts.MonthCellLimit})
		f.Month = &g
	case ViewWeek:
		w := views.BuildWeek(in, s.nav.Cursor)
		f.Week = &w
	case ViewDay:
		d := views.BuildDay(in, s.nav.Cursor, views.DayOptions{
			StartHour: s.opts.StartHour,
			EndHour:   s.opts.EndHour,
			RowHeight: s.opts.RowHeight,
			Expanded:  s.tracker.ExpandedSet(),
		})
		if fresh := s.tracker.Observe(d.Groups); len(fresh) > 0 {
			s.later(func() bool { return s.tracker.Commit(fresh) })
		}
		f.Day = &d
	case ViewAgenda:
		in.Items = inRange(in, from, to)
		a := views.BuildAgenda(in)
		f.Agenda = &a
	}
	f.Expanded = s.tracker.Expanded()
	if l, ok := s.popover.Current(); ok {
		f.Popover = &l
	}
	return f
}

// later queues fn to run after the current render pass. fn reports whether
// it changed anything.
func (s *Session) later(fn func() bool) {
	s.tasks = append(s.tasks, fn)
}

func (s *Session) flushLocked() bool {
	changed := false
	for len(s.tasks) > 0 {
		t := s.tasks[0]
		s.tasks = s.tasks[1:]
		if t() {
			changed = true
		}
	}
	return changed
}

func inRange(in views.Input, from, to time.Time) []model.ContentItem {
	out := make([]model.ContentItem, 0, len(in.Items))
	last := in.Resolver.AddDays(to, 1)
	for _, it := range in.Items {
		at, ok := in.Resolver.EffectiveDate(it)
		if !ok || at.Before(from) || !at.Before(last) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// fetch loads items and notes for nav concurrently. The requested range is
// padded by a day on each side so that zone offsets never hide an item
// near the edge; bucketing trims the rest.
func (s *Session) fetch(ctx context.Context, nav Navigation, f model.Filters) ([]model.ContentItem, []model.CalendarNote, error) {
	from, to := nav.Range(s.r, s.opts.WeekStart, s.opts.AgendaDays)
	fromKey := s.r.DayKey(s.r.AddDays(from, -1))
	toKey := s.r.DayKey(s.r.AddDays(to, 1))

	var items []model.ContentItem
	var ns []model.CalendarNote

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.backend.ListCalendarItems(gctx, api.ItemQuery{Filters: f, From: fromKey, To: toKey})
		if err != nil {
			return fmt.Errorf("listing calendar items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ns, err = s.backend.ListNotes(gctx, api.NoteQuery{From: fromKey, To: toKey})
		if err != nil {
			return fmt.Errorf("listing notes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if s.opts.Overlay != nil {
		ns = notes.Merge(ns, s.opts.Overlay())
	}
	return items, ns, nil
}

// refetch reloads the collections for the current view. It runs after a
// committed drop.
func (s *Session) refetch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.fetchGen++
	gen, nav, filters := s.fetchGen, s.nav, s.filters
	s.mu.Unlock()

	items, ns, err := s.fetch(ctx, nav, filters)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.fetchGen {
		appLog.Debug("dropping superseded refetch", "session", s.id)
		return nil
	}
	s.items, s.notes = items, ns
	return nil
}

// Current re-derives the frame from the last fetched collections without
// touching the network.
func (s *Session) Current() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrClosed
	}
	return s.frameLocked(), nil
}

// Items returns the last fetched, filtered collection.
func (s *Session) Items() []model.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter.Apply(s.items, s.filters)
}

// ToggleExpand flips parentID and returns the expanded set.
func (s *Session) ToggleExpand(parentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.touchLocked()
	s.tracker.Toggle(parentID)
	return s.tracker.Expanded(), nil
}

// lookupLocked finds id among the items the current filters leave visible.
func (s *Session) lookupLocked(id string) (model.ContentItem, bool) {
	for _, it := range filter.Apply(s.items, s.filters) {
		if it.ID == id {
			return it, true
		}
	}
	return model.ContentItem{}, false
}

// DragStart picks up a displayed item.
func (s *Session) DragStart(itemID string) (drag.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return drag.Snapshot{}, ErrClosed
	}
	s.touchLocked()
	it, ok := s.lookupLocked(itemID)
	if !ok {
		return drag.Snapshot{}, api.ErrNotFound
	}
	if err := s.drag.Start(it); err != nil {
		return drag.Snapshot{}, err
	}
	return s.drag.Snapshot(), nil
}

func (s *Session) DragEnter(t drag.Target) (drag.Snapshot, error) {
	if err := s.event(); err != nil {
		return drag.Snapshot{}, err
	}
	if err := s.drag.Enter(t); err != nil {
		return drag.Snapshot{}, err
	}
	return s.drag.Snapshot(), nil
}

func (s *Session) DragLeave() (drag.Snapshot, error) {
	if err := s.event(); err != nil {
		return drag.Snapshot{}, err
	}
	if err := s.drag.Leave(); err != nil {
		return drag.Snapshot{}, err
	}
	return s.drag.Snapshot(), nil
}

func (s *Session) DragEnd() (drag.Snapshot, error) {
	if err := s.event(); err != nil {
		return drag.Snapshot{}, err
	}
	s.drag.End()
	return s.drag.Snapshot(), nil
}

// DragDrop commits the drag. The session lock is not held while the
// request is in flight, so other events keep flowing; the item itself is
// guarded by the drag controller until its request resolves.
func (s *Session) DragDrop(ctx context.Context, t drag.Target) (drag.Result, error) {
	if err := s.event(); err != nil {
		return drag.Result{}, err
	}
	return s.drag.Drop(ctx, t)
}

// event marks activity and checks the session is open.
func (s *Session) event() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.touchLocked()
	return nil
}

// OpenPopover anchors the detail popover to a displayed item.
func (s *Session) OpenPopover(itemID string, anchor popover.Rect, viewport popover.Size) (popover.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return popover.Layout{}, ErrClosed
	}
	s.touchLocked()
	if _, ok := s.lookupLocked(itemID); !ok {
		return popover.Layout{}, api.ErrNotFound
	}
	return s.popover.Open(itemID, anchor, viewport), nil
}

func (s *Session) ClosePopover() error {
	if err := s.event(); err != nil {
		return err
	}
	s.popover.Close()
	return nil
}

// PopoverKey forwards a key press and reports whether it closed the popover.
func (s *Session) PopoverKey(key string) (bool, error) {
	if err := s.event(); err != nil {
		return false, err
	}
	return s.popover.HandleKey(key), nil
}

// PopoverClick forwards a click and reports whether it closed the popover.
func (s *Session) PopoverClick(p popover.Point) (bool, error) {
	if err := s.event(); err != nil {
		return false, err
	}
	return s.popover.HandleClick(p), nil
}

// SearchProducts runs a debounced product search. An earlier call still
// waiting returns search.ErrStale.
func (s *Session) SearchProducts(ctx context.Context, q string) ([]api.Product, error) {
	if err := s.event(); err != nil {
		return nil, err
	}
	q = strings.TrimSpace(q)
	if q == "" {
		s.search.Cancel()
		return []api.Product{}, nil
	}
	return s.search.Do(ctx, q)
}

// Close discards every piece of interaction state. The session cannot be
// used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.fetchGen++
	s.drag.End()
	s.popover.Close()
	s.search.Cancel()
	s.tasks = nil
	s.items, s.notes = nil, nil
}

func (s *Session) touchLocked() {
	s.lastUsed = s.opts.Now()
}
