package views

import (
	"fmt"
	"time"

	"contentcal/internal/grouping"
	"contentcal/internal/model"
	"contentcal/internal/notes"
)

const (
	DefaultStartHour = 6
	DefaultEndHour   = 23
	DefaultRowHeight = 60
)

// DayOptions tunes the day view. Expanded is a snapshot of the parents the
// user currently has open.
type DayOptions struct {
	StartHour int
	EndHour   int
	RowHeight int
	Expanded  map[string]bool
}

func (o DayOptions) normalized() DayOptions {
	if o.StartHour == 0 && o.EndHour == 0 {
		o.StartHour, o.EndHour = DefaultStartHour, DefaultEndHour
	}
	if o.StartHour < 0 || o.StartHour > 23 || o.EndHour < o.StartHour || o.EndHour > 23 {
		o.StartHour, o.EndHour = DefaultStartHour, DefaultEndHour
	}
	if o.RowHeight <= 0 {
		o.RowHeight = DefaultRowHeight
	}
	return o
}

// Entry is an item rendered in a day view list. Children holds same-hour
// variants nested under this item; the UI shows them when Expanded.
type Entry struct {
	Item     model.ContentItem   `json:"item"`
	Time     string              `json:"time,omitempty"`
	Children []model.ContentItem `json:"children,omitempty"`
	Expanded bool                `json:"expanded"`
}

type HourRow struct {
	Hour    int     `json:"hour"`
	Label   string  `json:"label"`
	Entries []Entry `json:"entries"`
}

// NowLine marks the current time inside the current hour's row.
type NowLine struct {
	Hour   int     `json:"hour"`
	Offset float64 `json:"offset"`
}

type DayView struct {
	Date    string         `json:"date"`
	IsToday bool           `json:"is_today"`
	AllDay  []Entry        `json:"all_day"`
	Hours   []HourRow      `json:"hours"`
	OffGrid []Entry        `json:"off_grid"`
	Notes   []notes.Styled `json:"notes"`
	Now     *NowLine       `json:"now,omitempty"`

	// Groups is the parent/child index for the displayed day; the caller
	// feeds it to the expand tracker.
	Groups grouping.Map `json:"-"`
}

// BuildDay lays out a single day: an all-day strip, one row per hour in
// [StartHour, EndHour], and an off-grid list for timed items outside that
// range.
func BuildDay(in Input, day time.Time, opts DayOptions) DayView {
	opts = opts.normalized()
	r := in.Resolver
	day = r.StartOfDay(day)
	key := r.DayKey(day)

	onDay := byDay(in)[key]
	groups := grouping.Group(itemsOf(onDay))

	var allDay []dated
	rows := make(map[int][]dated)
	offGrid := make(map[int][]dated)
	for _, d := range onDay {
		switch {
		case r.ItemIsAllDay(d.item):
			allDay = append(allDay, d)
		case d.at.Hour() >= opts.StartHour && d.at.Hour() <= opts.EndHour:
			rows[d.at.Hour()] = append(rows[d.at.Hour()], d)
		default:
			offGrid[d.at.Hour()] = append(offGrid[d.at.Hour()], d)
		}
	}

	v := DayView{
		Date:    key,
		IsToday: r.SameDay(day, in.Now),
		AllDay:  nest(allDay, groups, opts.Expanded, false),
		OffGrid: make([]Entry, 0),
		Notes:   notes.Style(notes.ForDay(in.Notes, day, r)),
		Groups:  groups,
	}
	// Off-grid items nest per hour, like the rows.
	for h := 0; h < 24; h++ {
		v.OffGrid = append(v.OffGrid, nest(offGrid[h], groups, opts.Expanded, true)...)
	}
	for h := opts.StartHour; h <= opts.EndHour; h++ {
		v.Hours = append(v.Hours, HourRow{
			Hour:    h,
			Label:   fmt.Sprintf("%02d:00", h),
			Entries: nest(rows[h], groups, opts.Expanded, true),
		})
	}

	if v.IsToday {
		now := in.Now.In(r.Location())
		if now.Hour() >= opts.StartHour && now.Hour() <= opts.EndHour {
			v.Now = &NowLine{
				Hour:   now.Hour(),
				Offset: float64(now.Minute()) / 60 * float64(opts.RowHeight),
			}
		}
	}

	return v
}

// nest turns one list (an hour row, the all-day strip or the off-grid list)
// into entries. A child is nested only when its parent is in the same list;
// otherwise it stands on its own.
func nest(list []dated, groups grouping.Map, expanded map[string]bool, timed bool) []Entry {
	present := make(map[string]bool, len(list))
	parentOf := make(map[string]string, len(list))
	for _, d := range list {
		present[d.item.ID] = true
		parentOf[d.item.ID] = d.item.ParentID()
	}
	hasParent := func(id string) bool {
		pid := parentOf[id]
		return pid != "" && pid != id && present[pid]
	}
	// Grouping is one level deep: an item nests only under a parent that is
	// not itself nested. Self references and cycles stay visible.
	nested := func(id string) bool {
		return hasParent(id) && !hasParent(parentOf[id])
	}

	out := make([]Entry, 0, len(list))
	for _, d := range list {
		if nested(d.item.ID) {
			continue
		}
		e := Entry{Item: d.item}
		if timed {
			e.Time = d.at.Format("15:04")
		}
		for _, c := range groups.Children(d.item.ID) {
			if present[c.ID] && nested(c.ID) {
				e.Children = append(e.Children, c)
			}
		}
		if len(e.Children) > 0 {
			e.Expanded = expanded[d.item.ID]
		}
		out = append(out, e)
	}
	return out
}
