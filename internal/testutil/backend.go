package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"contentcal/internal/api"
	"contentcal/internal/model"
)

// Backend is an in-memory api.Backend. Set the Fail* fields to inject
// errors into the matching calls.
type Backend struct {
	mu       sync.Mutex
	items    []model.ContentItem
	notes    []model.CalendarNote
	products []api.Product
	nextNote int

	FailList       error
	FailNotes      error
	FailReschedule error
	FailTransition error

	Reschedules []Reschedule
	ItemQueries []api.ItemQuery
}

// Reschedule records one RescheduleItem call.
type Reschedule struct {
	ID  string
	Req api.Reschedule
}

var _ api.Backend = (*Backend)(nil)

func NewBackend(items ...model.ContentItem) *Backend {
	return &Backend{items: append([]model.ContentItem(nil), items...)}
}

func (b *Backend) SetItems(items ...model.ContentItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]model.ContentItem(nil), items...)
}

func (b *Backend) AddNotes(ns ...model.CalendarNote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = append(b.notes, ns...)
}

func (b *Backend) AddProducts(ps ...api.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.products = append(b.products, ps...)
}

func (b *Backend) Notes() []model.CalendarNote {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.CalendarNote(nil), b.notes...)
}

func (b *Backend) RescheduleCalls() []Reschedule {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Reschedule(nil), b.Reschedules...)
}

// ListItems ignores the date range and applies only status, which is enough
// for paging and stats tests.
func (b *Backend) ListItems(_ context.Context, q api.ItemQuery) (api.ItemPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailList != nil {
		return api.ItemPage{}, b.FailList
	}
	out := make([]model.ContentItem, 0, len(b.items))
	for _, it := range b.items {
		if q.Filters.Status != "" && it.Status != q.Filters.Status {
			continue
		}
		out = append(out, it)
	}
	total := len(out)
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			out = out[:0]
		} else {
			out = out[q.Offset:]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return api.ItemPage{Items: out, Total: total}, nil
}

// ListCalendarItems returns every item; the calendar filters locally.
func (b *Backend) ListCalendarItems(_ context.Context, q api.ItemQuery) ([]model.ContentItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ItemQueries = append(b.ItemQueries, q)
	if b.FailList != nil {
		return nil, b.FailList
	}
	return append([]model.ContentItem{}, b.items...), nil
}

func (b *Backend) GetItem(_ context.Context, id string) (model.ContentItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, it := range b.items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.ContentItem{}, api.ErrNotFound
}

func (b *Backend) RescheduleItem(_ context.Context, id string, r api.Reschedule) (model.ContentItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailReschedule != nil {
		return model.ContentItem{}, b.FailReschedule
	}
	for i, it := range b.items {
		if it.ID != id {
			continue
		}
		if r.PublishDate != nil {
			v := *r.PublishDate
			it.PublishDate = &v
		}
		if r.DueDate != nil {
			v := *r.DueDate
			it.DueDate = &v
		}
		b.items[i] = it
		b.Reschedules = append(b.Reschedules, Reschedule{ID: id, Req: r})
		return it, nil
	}
	return model.ContentItem{}, api.ErrNotFound
}

func (b *Backend) TransitionItem(_ context.Context, id string, to model.Status, _ string) (model.ContentItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailTransition != nil {
		return model.ContentItem{}, b.FailTransition
	}
	for i, it := range b.items {
		if it.ID == id {
			it.Status = to
			b.items[i] = it
			return it, nil
		}
	}
	return model.ContentItem{}, api.ErrNotFound
}

func (b *Backend) ListNotes(_ context.Context, q api.NoteQuery) ([]model.CalendarNote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailNotes != nil {
		return nil, b.FailNotes
	}
	out := make([]model.CalendarNote, 0, len(b.notes))
	for _, n := range b.notes {
		if q.From != "" && n.Date < q.From {
			continue
		}
		if q.To != "" && n.Date > q.To {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (b *Backend) CreateNote(_ context.Context, in api.NoteInput) (model.CalendarNote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailNotes != nil {
		return model.CalendarNote{}, b.FailNotes
	}
	b.nextNote++
	n := model.CalendarNote{
		ID:         fmt.Sprintf("note-%d", b.nextNote),
		Date:       in.Date,
		Text:       in.Text,
		Color:      in.Color,
		Visibility: in.Visibility,
		CreatedBy:  "tester",
	}
	b.notes = append(b.notes, n)
	return n, nil
}

func (b *Backend) UpdateNote(_ context.Context, id string, p api.NotePatch) (model.CalendarNote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailNotes != nil {
		return model.CalendarNote{}, b.FailNotes
	}
	for i, n := range b.notes {
		if n.ID != id {
			continue
		}
		if p.Date != nil {
			n.Date = *p.Date
		}
		if p.Text != nil {
			n.Text = *p.Text
		}
		if p.Color != nil {
			if *p.Color == model.NoteColorDefault {
				n.Color = nil
			} else {
				c := *p.Color
				n.Color = &c
			}
		}
		if p.Visibility != nil {
			n.Visibility = *p.Visibility
		}
		b.notes[i] = n
		return n, nil
	}
	return model.CalendarNote{}, api.ErrNotFound
}

func (b *Backend) DeleteNote(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailNotes != nil {
		return b.FailNotes
	}
	for i, n := range b.notes {
		if n.ID == id {
			b.notes = append(b.notes[:i], b.notes[i+1:]...)
			return nil
		}
	}
	return api.ErrNotFound
}

func (b *Backend) SearchProducts(_ context.Context, q string) ([]api.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q = strings.ToLower(q)
	out := make([]api.Product, 0)
	for _, p := range b.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Brand), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
