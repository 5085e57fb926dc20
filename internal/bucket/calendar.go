package bucket

import "time"

// DayKey formats t as yyyy-MM-dd in the display location.
func (r Resolver) DayKey(t time.Time) string {
	return t.In(r.Location()).Format(dateOnlyLayout)
}

// ParseDay parses a yyyy-MM-dd key into local midnight.
func (r Resolver) ParseDay(key string) (time.Time, bool) {
	t, err := time.ParseInLocation(dateOnlyLayout, key, r.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SameDay compares local calendar dates.
func (r Resolver) SameDay(a, b time.Time) bool {
	loc := r.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns local midnight of t's day.
func (r Resolver) StartOfDay(t time.Time) time.Time {
	t = t.In(r.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.Location())
}

// AddDays moves by calendar days, keeping local midnight across DST shifts.
func (r Resolver) AddDays(t time.Time, n int) time.Time {
	t = t.In(r.Location())
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, r.Location())
}

// StartOfWeek returns the first day of t's week for the given week start.
func (r Resolver) StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	d := r.StartOfDay(t)
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return r.AddDays(d, -offset)
}

// EndOfWeek returns the last day (at midnight) of t's week.
func (r Resolver) EndOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	return r.AddDays(r.StartOfWeek(t, weekStart), 6)
}

// StartOfMonth returns local midnight of the first of t's month.
func (r Resolver) StartOfMonth(t time.Time) time.Time {
	t = t.In(r.Location())
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, r.Location())
}

// EndOfMonth returns local midnight of the last day of t's month.
func (r Resolver) EndOfMonth(t time.Time) time.Time {
	first := r.StartOfMonth(t)
	return time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, r.Location())
}
