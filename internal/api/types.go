package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"contentcal/internal/filter"
	"contentcal/internal/model"
)

// Backend is everything the calendar consumes from the external API.
type Backend interface {
	ListItems(ctx context.Context, q ItemQuery) (ItemPage, error)
	ListCalendarItems(ctx context.Context, q ItemQuery) ([]model.ContentItem, error)
	GetItem(ctx context.Context, id string) (model.ContentItem, error)
	RescheduleItem(ctx context.Context, id string, r Reschedule) (model.ContentItem, error)
	TransitionItem(ctx context.Context, id string, to model.Status, reason string) (model.ContentItem, error)

	ListNotes(ctx context.Context, q NoteQuery) ([]model.CalendarNote, error)
	CreateNote(ctx context.Context, in NoteInput) (model.CalendarNote, error)
	UpdateNote(ctx context.Context, id string, p NotePatch) (model.CalendarNote, error)
	DeleteNote(ctx context.Context, id string) error

	SearchProducts(ctx context.Context, query string) ([]Product, error)
}

// ItemQuery narrows item listings server-side. From/To are yyyy-MM-dd.
type ItemQuery struct {
	Filters model.Filters
	From    string
	To      string
	Limit   int
	Offset  int
}

func (q ItemQuery) values() url.Values {
	v := filter.Query(q.Filters)
	if q.From != "" {
		v.Set("from", q.From)
	}
	if q.To != "" {
		v.Set("to", q.To)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// ItemPage is the listItems response.
type ItemPage struct {
	Items []model.ContentItem `json:"items"`
	Total int                 `json:"total"`
}

// Reschedule carries the new date for whichever field the item uses.
type Reschedule struct {
	PublishDate *string `json:"publish_date,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

type transitionRequest struct {
	ToStatus model.Status `json:"to_status"`
	Reason   string       `json:"reason,omitempty"`
}

// NoteQuery narrows note listings. From/To are yyyy-MM-dd.
type NoteQuery struct {
	From string
	To   string
}

// NoteInput creates a calendar note.
type NoteInput struct {
	Date       string           `json:"date"`
	Text       string           `json:"text"`
	Color      *model.NoteColor `json:"color"`
	Visibility model.Visibility `json:"visibility"`
}

// NotePatch updates a calendar note. Nil fields are left unchanged; a
// Color pointing at the empty palette name resets the color to default.
type NotePatch struct {
	Date       *string
	Text       *string
	Color      *model.NoteColor
	Visibility *model.Visibility
}

func (p NotePatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4)
	if p.Date != nil {
		m["date"] = *p.Date
	}
	if p.Text != nil {
		m["text"] = *p.Text
	}
	if p.Color != nil {
		if *p.Color == model.NoteColorDefault {
			m["color"] = nil
		} else {
			m["color"] = *p.Color
		}
	}
	if p.Visibility != nil {
		m["visibility"] = *p.Visibility
	}
	return json.Marshal(m)
}

func (p *NotePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NotePatch{}
	if v, ok := raw["date"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		p.Date = &s
	}
	if v, ok := raw["text"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		p.Text = &s
	}
	if v, ok := raw["color"]; ok {
		c := model.NoteColorDefault
		if string(v) != "null" {
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
		}
		p.Color = &c
	}
	if v, ok := raw["visibility"]; ok {
		var vis model.Visibility
		if err := json.Unmarshal(v, &vis); err != nil {
			return err
		}
		p.Visibility = &vis
	}
	return nil
}

// Product is a catalog search hit used by brand/product pickers.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
}
