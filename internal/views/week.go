package views

import (
	"time"

	"contentcal/internal/model"
)

// WeekColumn lists every item bucketed on one day, uncapped.
type WeekColumn struct {
	Date    string              `json:"date"`
	Weekday string              `json:"weekday"`
	IsToday bool                `json:"is_today"`
	Items   []model.ContentItem `json:"items"`
}

type WeekView struct {
	Start string       `json:"start"`
	End   string       `json:"end"`
	Days  []WeekColumn `json:"days"`
}

// BuildWeek lays out the seven days of the week containing cursor.
func BuildWeek(in Input, cursor time.Time) WeekView {
	r := in.Resolver
	start := r.StartOfWeek(cursor, in.WeekStart)
	buckets := byDay(in)

	v := WeekView{
		Start: r.DayKey(start),
		End:   r.DayKey(r.AddDays(start, 6)),
		Days:  make([]WeekColumn, 0, 7),
	}
	for i := 0; i < 7; i++ {
		d := r.AddDays(start, i)
		key := r.DayKey(d)
		v.Days = append(v.Days, WeekColumn{
			Date:    key,
			Weekday: d.Weekday().String(),
			IsToday: r.SameDay(d, in.Now),
			Items:   itemsOf(buckets[key]),
		})
	}
	return v
}
