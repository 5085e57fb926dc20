// Package views lays the filtered item collection out as month, week, day
// and agenda grids. Builders are pure: all interaction state is passed in.
package views

import (
	"time"

	"contentcal/internal/bucket"
	"contentcal/internal/model"
)

// Input is shared by every builder. Items must already be filtered.
type Input struct {
	Items     []model.ContentItem
	Notes     []model.CalendarNote
	Resolver  bucket.Resolver
	Now       time.Time
	WeekStart time.Weekday
}

// dated is an item with its resolved effective date.
type dated struct {
	item model.ContentItem
	at   time.Time
}

// byDay buckets every placeable item by local day key, keeping collection
// order inside each bucket. Items without a resolvable effective date are
// dropped here and never reach any grid.
func byDay(in Input) map[string][]dated {
	out := make(map[string][]dated)
	for _, it := range in.Items {
		at, ok := in.Resolver.EffectiveDate(it)
		if !ok {
			continue
		}
		key := in.Resolver.DayKey(at)
		out[key] = append(out[key], dated{item: it, at: at})
	}
	return out
}

func itemsOf(ds []dated) []model.ContentItem {
	out := make([]model.ContentItem, len(ds))
	for i, d := range ds {
		out[i] = d.item
	}
	return out
}
