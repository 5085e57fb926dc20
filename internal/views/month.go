package views

import (
	"time"

	"contentcal/internal/model"
	"contentcal/internal/notes"
)

// DefaultCellLimit is how many items a month cell shows before "+N more".
const DefaultCellLimit = 3

// MonthOptions tunes the month grid.
type MonthOptions struct {
	CellLimit int
}

// MonthCell is one day of the month grid. Cells outside the target month
// are dimmed by the UI but stay valid drop targets.
type MonthCell struct {
	Date    string              `json:"date"`
	Day     int                 `json:"day"`
	InMonth bool                `json:"in_month"`
	IsToday bool                `json:"is_today"`
	Items   []model.ContentItem `json:"items"`
	More    int                 `json:"more"`
	Total   int                 `json:"total"`
	Notes   []notes.Styled      `json:"notes"`
}

// MonthGrid covers every full week overlapping the month.
type MonthGrid struct {
	Month string        `json:"month"`
	Start string        `json:"start"`
	End   string        `json:"end"`
	Weeks [][]MonthCell `json:"weeks"`
}

// Cells flattens the grid row by row.
func (g MonthGrid) Cells() []MonthCell {
	out := make([]MonthCell, 0, len(g.Weeks)*7)
	for _, w := range g.Weeks {
		out = append(out, w...)
	}
	return out
}

// BuildMonth lays out the month containing month.
func BuildMonth(in Input, month time.Time, opts MonthOptions) MonthGrid {
	limit := opts.CellLimit
	if limit <= 0 {
		limit = DefaultCellLimit
	}
	r := in.Resolver

	first := r.StartOfMonth(month)
	gridStart := r.StartOfWeek(first, in.WeekStart)
	gridEnd := r.EndOfWeek(r.EndOfMonth(month), in.WeekStart)

	buckets := byDay(in)

	grid := MonthGrid{
		Month: first.Format("2006-01"),
		Start: r.DayKey(gridStart),
		End:   r.DayKey(gridEnd),
	}

	var week []MonthCell
	for d := gridStart; !d.After(gridEnd); d = r.AddDays(d, 1) {
		key := r.DayKey(d)
		all := itemsOf(buckets[key])

		shown := all
		more := 0
		if len(all) > limit {
			shown = all[:limit]
			more = len(all) - limit
		}

		week = append(week, MonthCell{
			Date:    key,
			Day:     d.Day(),
			InMonth: d.Month() == first.Month() && d.Year() == first.Year(),
			IsToday: r.SameDay(d, in.Now),
			Items:   shown,
			More:    more,
			Total:   len(all),
			Notes:   notes.Style(notes.ForDay(in.Notes, d, r)),
		})
		if len(week) == 7 {
			grid.Weeks = append(grid.Weeks, week)
			week = nil
		}
	}

	return grid
}
