package drag

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/internal/api"
	"contentcal/internal/bucket"
	"contentcal/internal/model"
)

var est = time.FixedZone("EST", -5*3600)

func strp(s string) *string { return &s }

type call struct {
	id string
	r  api.Reschedule
}

type fakeScheduler struct {
	mu          sync.Mutex
	calls       []call
	transitions []model.Status
	err         error
	block       chan struct{}
}

func (f *fakeScheduler) RescheduleItem(ctx context.Context, id string, r api.Reschedule) (model.ContentItem, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.ContentItem{}, f.err
	}
	f.calls = append(f.calls, call{id: id, r: r})
	return model.ContentItem{ID: id, PublishDate: r.PublishDate, DueDate: r.DueDate}, nil
}

func (f *fakeScheduler) TransitionItem(ctx context.Context, id string, to model.Status, reason string) (model.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.ContentItem{}, f.err
	}
	f.transitions = append(f.transitions, to)
	return model.ContentItem{ID: id, Status: to}, nil
}

func newController(s Scheduler, refetch func(context.Context) error) *Controller {
	return New(bucket.New(est), s, refetch)
}

func TestStateMachine(t *testing.T) {
	c := newController(&fakeScheduler{}, nil)
	assert.Equal(t, Idle, c.Snapshot().State)

	assert.ErrorIs(t, c.Enter(Target{Kind: TargetDay, Date: "2026-03-02"}), ErrNotDragging)
	assert.ErrorIs(t, c.Leave(), ErrNotDragging)

	require.NoError(t, c.Start(model.ContentItem{ID: "a"}))
	assert.Equal(t, Dragging, c.Snapshot().State)
	assert.Equal(t, "a", c.Snapshot().ItemID)

	require.NoError(t, c.Enter(Target{Kind: TargetHour, Date: "2026-03-02", Hour: 14}))
	snap := c.Snapshot()
	assert.Equal(t, Hovering, snap.State)
	require.NotNil(t, snap.Target)
	assert.Equal(t, 14, snap.Target.Hour)

	require.NoError(t, c.Leave())
	assert.Equal(t, Dragging, c.Snapshot().State)
	assert.Nil(t, c.Snapshot().Target)

	c.End()
	assert.Equal(t, Idle, c.Snapshot().State)
	assert.Empty(t, c.Snapshot().ItemID)
}

func TestEnterRejectsInvalidTargets(t *testing.T) {
	c := newController(&fakeScheduler{}, nil)
	require.NoError(t, c.Start(model.ContentItem{ID: "a"}))

	for _, tgt := range []Target{
		{Kind: TargetDay, Date: "tomorrow"},
		{Kind: TargetHour, Date: "2026-03-02", Hour: 24},
		{Kind: TargetStatus, Status: "archived"},
		{Kind: "lane"},
	} {
		assert.ErrorIs(t, c.Enter(tgt), ErrInvalidTarget, "%+v", tgt)
	}
	assert.Equal(t, Dragging, c.Snapshot().State)
}

func TestDropOnHourPreservesDateAndTargetsUsedField(t *testing.T) {
	tests := []struct {
		name      string
		item      model.ContentItem
		wantField string
	}{
		{
			name:      "publish date",
			item:      model.ContentItem{ID: "a", PublishDate: strp("2026-03-02T14:20:00.000Z"), DueDate: strp("2026-03-20")},
			wantField: "publish_date",
		},
		{
			name:      "due date only",
			item:      model.ContentItem{ID: "a", DueDate: strp("2026-03-02T14:20:00.000Z")},
			wantField: "due_date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeScheduler{}
			c := newController(s, nil)

			// 14:20Z is 09:20 EST.
			require.NoError(t, c.Start(tt.item))
			res, err := c.Drop(context.Background(), Target{Kind: TargetHour, Date: "2026-03-02", Hour: 14})
			require.NoError(t, err)
			assert.Equal(t, tt.wantField, res.Field)

			require.Len(t, s.calls, 1)
			r := s.calls[0].r
			var got *string
			if tt.wantField == "publish_date" {
				got = r.PublishDate
				assert.Nil(t, r.DueDate)
			} else {
				got = r.DueDate
				assert.Nil(t, r.PublishDate)
			}
			require.NotNil(t, got)

			at, err := time.Parse(time.RFC3339, *got)
			require.NoError(t, err)
			local := at.In(est)
			assert.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, est), local)
			assert.Equal(t, "2026-03-02T19:00:00.000Z", *got)
			assert.Equal(t, Idle, c.Snapshot().State)
		})
	}
}

func TestPlanDayDrop(t *testing.T) {
	c := newController(&fakeScheduler{}, nil)
	day := Target{Kind: TargetDay, Date: "2026-03-09"}

	field, v, err := c.Plan(model.ContentItem{PublishDate: strp("2026-03-02T14:20:00.000Z")}, day)
	require.NoError(t, err)
	assert.Equal(t, "publish_date", field)
	assert.Equal(t, "2026-03-09T14:20:00.000Z", v, "timed items keep their local time of day")

	_, v, err = c.Plan(model.ContentItem{DueDate: strp("2026-03-02")}, day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", v, "all-day items stay all-day")

	_, v, err = c.Plan(model.ContentItem{PublishDate: strp("2026-03-02T00:00:00.000Z")}, day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", v)

	field, v, err = c.Plan(model.ContentItem{}, day)
	require.NoError(t, err)
	assert.Equal(t, "publish_date", field, "undated items are scheduled by publish date")
	assert.Equal(t, "2026-03-09", v)
}

func TestPlanDayDropAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	c := New(bucket.New(ny), &fakeScheduler{}, nil)

	// 09:30 EST on March 2, dropped on March 9 (after the switch to EDT).
	_, v, err := c.Plan(model.ContentItem{PublishDate: strp("2026-03-02T14:30:00.000Z")}, Target{Kind: TargetDay, Date: "2026-03-09"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09T13:30:00.000Z", v)
}

func TestDropFailureLeavesNothingPending(t *testing.T) {
	boom := errors.New("connection reset")
	s := &fakeScheduler{err: boom}
	refetched := 0
	c := newController(s, func(context.Context) error { refetched++; return nil })

	require.NoError(t, c.Start(model.ContentItem{ID: "a", PublishDate: strp("2026-03-02")}))
	_, err := c.Drop(context.Background(), Target{Kind: TargetDay, Date: "2026-03-04"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, refetched, "failed drops never refetch")
	assert.Equal(t, Idle, c.Snapshot().State)
	assert.False(t, c.Pending("a"))

	require.NoError(t, c.Start(model.ContentItem{ID: "a"}), "item can be dragged again")
}

func TestDropSuccessRefetches(t *testing.T) {
	refetched := 0
	c := newController(&fakeScheduler{}, func(context.Context) error { refetched++; return errors.New("ignored") })
	require.NoError(t, c.Start(model.ContentItem{ID: "a", DueDate: strp("2026-03-02")}))
	_, err := c.Drop(context.Background(), Target{Kind: TargetDay, Date: "2026-03-04"})
	require.NoError(t, err, "refetch errors do not fail a committed drop")
	assert.Equal(t, 1, refetched)
}

func TestDropWithoutDrag(t *testing.T) {
	c := newController(&fakeScheduler{}, nil)
	_, err := c.Drop(context.Background(), Target{Kind: TargetDay, Date: "2026-03-04"})
	assert.ErrorIs(t, err, ErrNotDragging)
}

func TestDropOnStatusLane(t *testing.T) {
	s := &fakeScheduler{}
	c := newController(s, nil)
	require.NoError(t, c.Start(model.ContentItem{ID: "a", Status: model.StatusReview}))
	res, err := c.Drop(context.Background(), Target{Kind: TargetStatus, Status: model.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, "status", res.Field)
	assert.Equal(t, []model.Status{model.StatusApproved}, s.transitions)
	assert.Empty(t, s.calls)
}

func TestSecondDropOnSameItemIsSerialized(t *testing.T) {
	s := &fakeScheduler{block: make(chan struct{})}
	c := newController(s, nil)
	it := model.ContentItem{ID: "a", PublishDate: strp("2026-03-02")}

	require.NoError(t, c.Start(it))
	done := make(chan error, 1)
	go func() {
		_, err := c.Drop(context.Background(), Target{Kind: TargetDay, Date: "2026-03-04"})
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Pending("a") }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Start(it), ErrRequestPending)
	assert.Equal(t, []string{"a"}, c.Snapshot().Pending)

	require.NoError(t, c.Start(model.ContentItem{ID: "b"}), "other items stay draggable")
	c.End()

	close(s.block)
	require.NoError(t, <-done)
	assert.False(t, c.Pending("a"))
	require.NoError(t, c.Start(it))
}
