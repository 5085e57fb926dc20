// Package filter narrows the item collection before any view buckets it.
package filter

import (
	"net/url"
	"strings"

	"contentcal/internal/model"
)

// Apply returns the items satisfying every non-empty predicate in f.
// Brand and assignee match case-insensitive substrings; platform and status
// match exactly. Input order is preserved so that "+N more" slicing stays
// deterministic. A zero filter returns items unchanged.
func Apply(items []model.ContentItem, f model.Filters) []model.ContentItem {
	if f.IsZero() {
		return items
	}

	brand := strings.ToLower(strings.TrimSpace(f.Brand))
	assignee := strings.ToLower(strings.TrimSpace(f.Assignee))
	platform := strings.TrimSpace(f.Platform)
	status := model.Status(strings.TrimSpace(string(f.Status)))

	out := make([]model.ContentItem, 0, len(items))
	for _, it := range items {
		if brand != "" && !strings.Contains(strings.ToLower(it.Brand), brand) {
			continue
		}
		if assignee != "" && !strings.Contains(strings.ToLower(it.Assignee), assignee) {
			continue
		}
		if platform != "" && it.Platform != platform {
			continue
		}
		if status != "" && it.Status != status {
			continue
		}
		out = append(out, it)
	}
	return out
}

// FromQuery reads the filter bar's query parameters.
func FromQuery(q url.Values) model.Filters {
	return model.Filters{
		Brand:    strings.TrimSpace(q.Get("brand")),
		Platform: strings.TrimSpace(q.Get("platform")),
		Status:   model.Status(strings.TrimSpace(q.Get("status"))),
		Assignee: strings.TrimSpace(q.Get("assignee")),
	}
}

// Query is the inverse of FromQuery; empty fields are omitted.
func Query(f model.Filters) url.Values {
	q := url.Values{}
	if f.Brand != "" {
		q.Set("brand", f.Brand)
	}
	if f.Platform != "" {
		q.Set("platform", f.Platform)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Assignee != "" {
		q.Set("assignee", f.Assignee)
	}
	return q
}
