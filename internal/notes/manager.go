package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contentcal/internal/api"
	"contentcal/internal/bucket"
	appLog "contentcal/internal/log"
	"contentcal/internal/model"
)

var (
	ErrEmptyText         = errors.New("note text is empty")
	ErrInvalidDate       = errors.New("note date must be yyyy-MM-dd")
	ErrInvalidVisibility = errors.New("note visibility must be private or team")
	ErrInvalidColor      = errors.New("unknown note color")
	ErrReadOnly          = errors.New("note is read-only")
)

// Store is the slice of the notes API the manager needs.
type Store interface {
	ListNotes(ctx context.Context, q api.NoteQuery) ([]model.CalendarNote, error)
	CreateNote(ctx context.Context, in api.NoteInput) (model.CalendarNote, error)
	UpdateNote(ctx context.Context, id string, p api.NotePatch) (model.CalendarNote, error)
	DeleteNote(ctx context.Context, id string) error
}

// Manager validates note mutations and forwards them to the store. It keeps
// no copy of the collection: callers re-fetch after every mutation.
type Manager struct {
	store Store
	r     bucket.Resolver
}

func NewManager(store Store, r bucket.Resolver) *Manager {
	return &Manager{store: store, r: r}
}

// List fetches notes in [from, to] (yyyy-MM-dd, either may be empty).
func (m *Manager) List(ctx context.Context, from, to string) ([]model.CalendarNote, error) {
	ns, err := m.store.ListNotes(ctx, api.NoteQuery{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return ns, nil
}

func (m *Manager) Create(ctx context.Context, in api.NoteInput) (model.CalendarNote, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return model.CalendarNote{}, ErrEmptyText
	}
	if _, ok := m.r.ParseDay(strings.TrimSpace(in.Date)); !ok {
		return model.CalendarNote{}, ErrInvalidDate
	}
	in.Date = strings.TrimSpace(in.Date)
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPrivate
	}
	if !validVisibility(in.Visibility) {
		return model.CalendarNote{}, ErrInvalidVisibility
	}
	if in.Color != nil {
		c, err := checkColor(*in.Color)
		if err != nil {
			return model.CalendarNote{}, err
		}
		if c == model.NoteColorDefault {
			in.Color = nil
		}
	}

	n, err := m.store.CreateNote(ctx, in)
	if err != nil {
		return model.CalendarNote{}, fmt.Errorf("creating note: %w", err)
	}
	appLog.Info("note created", "id", n.ID, "date", n.Date, "visibility", n.Visibility)
	return n, nil
}

func (m *Manager) Update(ctx context.Context, id string, p api.NotePatch) (model.CalendarNote, error) {
	if isOverlayID(id) {
		return model.CalendarNote{}, ErrReadOnly
	}
	if p.Text != nil {
		t := strings.TrimSpace(*p.Text)
		if t == "" {
			return model.CalendarNote{}, ErrEmptyText
		}
		p.Text = &t
	}
	if p.Date != nil {
		d := strings.TrimSpace(*p.Date)
		if _, ok := m.r.ParseDay(d); !ok {
			return model.CalendarNote{}, ErrInvalidDate
		}
		p.Date = &d
	}
	if p.Visibility != nil && !validVisibility(*p.Visibility) {
		return model.CalendarNote{}, ErrInvalidVisibility
	}
	if p.Color != nil {
		if _, err := checkColor(*p.Color); err != nil {
			return model.CalendarNote{}, err
		}
	}

	n, err := m.store.UpdateNote(ctx, id, p)
	if err != nil {
		return model.CalendarNote{}, fmt.Errorf("updating note %s: %w", id, err)
	}
	return n, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if isOverlayID(id) {
		return ErrReadOnly
	}
	if err := m.store.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	appLog.Info("note deleted", "id", id)
	return nil
}

func isOverlayID(id string) bool {
	return strings.HasPrefix(id, model.OverlayNoteIDPrefix)
}

func validVisibility(v model.Visibility) bool {
	return v == model.VisibilityPrivate || v == model.VisibilityTeam
}

// checkColor rejects names outside the palette on write. Reads are lenient
// (see TreatmentFor).
func checkColor(c model.NoteColor) (model.NoteColor, error) {
	if c == model.NoteColorDefault {
		return c, nil
	}
	if _, ok := palette[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
	return c, nil
}
