package views

import (
	"sort"

	"contentcal/internal/model"
)

type AgendaEntry struct {
	Item   model.ContentItem `json:"item"`
	At     string            `json:"at"`
	Time   string            `json:"time,omitempty"`
	AllDay bool              `json:"all_day"`
}

type AgendaGroup struct {
	Date    string        `json:"date"`
	Label   string        `json:"label"`
	Entries []AgendaEntry `json:"entries"`
}

type Agenda struct {
	Groups []AgendaGroup `json:"groups"`
}

// BuildAgenda lists every placeable item chronologically, grouped by local
// day. Groups are ascending by date and entries ascending by effective
// instant; ties keep collection order.
func BuildAgenda(in Input) Agenda {
	r := in.Resolver
	buckets := byDay(in)

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	a := Agenda{Groups: make([]AgendaGroup, 0, len(keys))}
	for _, k := range keys {
		ds := make([]dated, len(buckets[k]))
		copy(ds, buckets[k])
		sort.SliceStable(ds, func(i, j int) bool {
			return ds[i].at.Before(ds[j].at)
		})

		g := AgendaGroup{
			Date:    k,
			Label:   dayLabel(in, ds[0]),
			Entries: make([]AgendaEntry, 0, len(ds)),
		}
		for _, d := range ds {
			e := AgendaEntry{
				Item:   d.item,
				At:     d.at.Format("2006-01-02T15:04:05Z07:00"),
				AllDay: r.ItemIsAllDay(d.item),
			}
			if !e.AllDay {
				e.Time = d.at.Format("15:04")
			}
			g.Entries = append(g.Entries, e)
		}
		a.Groups = append(a.Groups, g)
	}
	return a
}

// dayLabel names a day relative to Now: Today, Tomorrow, Yesterday, or the
// full weekday name.
func dayLabel(in Input, d dated) string {
	r := in.Resolver
	today := r.StartOfDay(in.Now)
	switch {
	case r.SameDay(d.at, today):
		return "Today"
	case r.SameDay(d.at, r.AddDays(today, 1)):
		return "Tomorrow"
	case r.SameDay(d.at, r.AddDays(today, -1)):
		return "Yesterday"
	default:
		return d.at.Weekday().String()
	}
}
