// Package drag implements the drag-to-reschedule state machine shared by
// the month, week and day grids and the status lanes.
package drag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"contentcal/internal/api"
	"contentcal/internal/bucket"
	appLog "contentcal/internal/log"
	"contentcal/internal/model"
)

var (
	ErrNotDragging    = errors.New("no drag in progress")
	ErrRequestPending = errors.New("item has a reschedule request in flight")
	ErrInvalidTarget  = errors.New("invalid drop target")
)

// TimestampLayout is how timed values are written back to the API.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// State is the controller's phase.
type State int

const (
	Idle State = iota
	Dragging
	Hovering
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Hovering:
		return "hovering"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// TargetKind says what a drop target represents.
type TargetKind string

const (
	TargetDay    TargetKind = "day"
	TargetHour   TargetKind = "hour"
	TargetStatus TargetKind = "status"
)

// Target is a candidate drop location. Date is yyyy-MM-dd for day and hour
// targets; Hour is only read for hour targets.
type Target struct {
	Kind   TargetKind   `json:"kind"`
	Date   string       `json:"date,omitempty"`
	Hour   int          `json:"hour,omitempty"`
	Status model.Status `json:"status,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// Scheduler is the slice of the item API the controller writes through.
type Scheduler interface {
	RescheduleItem(ctx context.Context, id string, r api.Reschedule) (model.ContentItem, error)
	TransitionItem(ctx context.Context, id string, to model.Status, reason string) (model.ContentItem, error)
}

// Result describes a committed drop.
type Result struct {
	Item  model.ContentItem `json:"item"`
	Field string            `json:"field"`
	Value string            `json:"value"`
}

// Snapshot is the controller state as shown to the client.
type Snapshot struct {
	State   State    `json:"state"`
	ItemID  string   `json:"item_id,omitempty"`
	Target  *Target  `json:"target,omitempty"`
	Pending []string `json:"pending"`
}

// Controller tracks at most one drag. Requests in flight are tracked per
// item: an item cannot be picked up again until its own request resolves.
type Controller struct {
	mu      sync.Mutex
	r       bucket.Resolver
	sched   Scheduler
	refetch func(ctx context.Context) error

	state   State
	item    model.ContentItem
	target  Target
	pending map[string]bool
}

// New returns an idle controller. refetch runs after every successful drop
// and may be nil.
func New(r bucket.Resolver, sched Scheduler, refetch func(ctx context.Context) error) *Controller {
	return &Controller{
		r:       r,
		sched:   sched,
		refetch: refetch,
		pending: make(map[string]bool),
	}
}

// Start picks up it.
func (c *Controller) Start(it model.ContentItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[it.ID] {
		return ErrRequestPending
	}
	c.state = Dragging
	c.item = it
	c.target = Target{}
	return nil
}

// Enter moves the drag over target.
func (c *Controller) Enter(t Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return ErrNotDragging
	}
	if err := c.validate(t); err != nil {
		return err
	}
	c.state = Hovering
	c.target = t
	return nil
}

// Leave drops the hover target but keeps the drag alive.
func (c *Controller) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return ErrNotDragging
	}
	c.state = Dragging
	c.target = Target{}
	return nil
}

// End cancels the drag. It is safe to call in any state.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Drop commits the drag onto t. The controller is idle once Drop returns,
// whatever the outcome. On failure nothing local has changed.
func (c *Controller) Drop(ctx context.Context, t Target) (Result, error) {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return Result{}, ErrNotDragging
	}
	if err := c.validate(t); err != nil {
		c.reset()
		c.mu.Unlock()
		return Result{}, err
	}
	it := c.item
	if c.pending[it.ID] {
		c.reset()
		c.mu.Unlock()
		return Result{}, ErrRequestPending
	}
	c.pending[it.ID] = true
	c.reset()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, it.ID)
		c.mu.Unlock()
	}()

	res, err := c.commit(ctx, it, t)
	if err != nil {
		appLog.Warn("drop failed", "item_id", it.ID, "target", string(t.Kind), "err", err)
		return Result{}, err
	}
	appLog.Info("item rescheduled",
		"item_id", it.ID,
		"field", res.Field,
		"value", res.Value,
	)

	if c.refetch != nil {
		if err := c.refetch(ctx); err != nil {
			appLog.Warn("refetch after drop failed", "item_id", it.ID, "err", err)
		}
	}
	return res, nil
}

func (c *Controller) commit(ctx context.Context, it model.ContentItem, t Target) (Result, error) {
	if t.Kind == TargetStatus {
		updated, err := c.sched.TransitionItem(ctx, it.ID, t.Status, t.Reason)
		if err != nil {
			return Result{}, fmt.Errorf("transitioning %s to %s: %w", it.ID, t.Status, err)
		}
		return Result{Item: updated, Field: "status", Value: string(t.Status)}, nil
	}

	field, value, err := c.Plan(it, t)
	if err != nil {
		return Result{}, err
	}
	var req api.Reschedule
	if field == "publish_date" {
		req.PublishDate = &value
	} else {
		req.DueDate = &value
	}
	updated, err := c.sched.RescheduleItem(ctx, it.ID, req)
	if err != nil {
		return Result{}, fmt.Errorf("rescheduling %s: %w", it.ID, err)
	}
	return Result{Item: updated, Field: field, Value: value}, nil
}

// Plan computes which date field a drop of it onto t writes, and the value
// written. It does not touch controller state.
//
// Hour targets land on hour:00:00 local. Day targets keep a timed item's
// local time of day and keep an all-day item all-day.
func (c *Controller) Plan(it model.ContentItem, t Target) (field, value string, err error) {
	day, ok := c.r.ParseDay(t.Date)
	if !ok {
		return "", "", fmt.Errorf("%w: date %q", ErrInvalidTarget, t.Date)
	}
	loc := c.r.Location()

	field = "due_date"
	raw := ""
	switch {
	case it.PublishDate != nil && strings.TrimSpace(*it.PublishDate) != "":
		field, raw = "publish_date", *it.PublishDate
	case it.DueDate != nil && strings.TrimSpace(*it.DueDate) != "":
		raw = *it.DueDate
	default:
		field = "publish_date"
	}

	switch t.Kind {
	case TargetHour:
		at := time.Date(day.Year(), day.Month(), day.Day(), t.Hour, 0, 0, 0, loc)
		return field, at.UTC().Format(TimestampLayout), nil
	case TargetDay:
		cur, ok := c.r.Parse(raw)
		if !ok || c.r.IsAllDay(raw) {
			return field, c.r.DayKey(day), nil
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), cur.Hour(), cur.Minute(), cur.Second(), 0, loc)
		return field, at.UTC().Format(TimestampLayout), nil
	}
	return "", "", fmt.Errorf("%w: kind %q", ErrInvalidTarget, t.Kind)
}

// Snapshot reports the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: c.state, Pending: make([]string, 0, len(c.pending))}
	if c.state != Idle {
		s.ItemID = c.item.ID
	}
	if c.state == Hovering {
		t := c.target
		s.Target = &t
	}
	for id := range c.pending {
		s.Pending = append(s.Pending, id)
	}
	sort.Strings(s.Pending)
	return s
}

// Pending reports whether id has a request in flight.
func (c *Controller) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id]
}

func (c *Controller) validate(t Target) error {
	switch t.Kind {
	case TargetDay:
		if _, ok := c.r.ParseDay(t.Date); !ok {
			return fmt.Errorf("%w: date %q", ErrInvalidTarget, t.Date)
		}
	case TargetHour:
		if _, ok := c.r.ParseDay(t.Date); !ok {
			return fmt.Errorf("%w: date %q", ErrInvalidTarget, t.Date)
		}
		if t.Hour < 0 || t.Hour > 23 {
			return fmt.Errorf("%w: hour %d", ErrInvalidTarget, t.Hour)
		}
	case TargetStatus:
		if !t.Status.Valid() {
			return fmt.Errorf("%w: status %q", ErrInvalidTarget, t.Status)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidTarget, t.Kind)
	}
	return nil
}

func (c *Controller) reset() {
	c.state = Idle
	c.item = model.ContentItem{}
	c.target = Target{}
}
