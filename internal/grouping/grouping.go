// Package grouping derives the one-level parent/child ("social post
// variant") index from flat parent_item_id back-references and tracks which
// parents are expanded.
package grouping

import "contentcal/internal/model"

// Map indexes children by parent id. It is rebuilt on every pass from the
// currently filtered items and never outlives that pass.
type Map struct {
	children map[string][]model.ContentItem
	order    []string
}

// Group builds the index in a single pass. Children are recorded even when
// their parent is absent from items; callers decide whether to nest by
// checking whether the parent itself is present.
func Group(items []model.ContentItem) Map {
	m := Map{children: make(map[string][]model.ContentItem)}
	for _, it := range items {
		pid := it.ParentID()
		if pid == "" {
			continue
		}
		if _, ok := m.children[pid]; !ok {
			m.order = append(m.order, pid)
		}
		m.children[pid] = append(m.children[pid], it)
	}
	return m
}

// Children returns the children recorded under parentID in input order.
func (m Map) Children(parentID string) []model.ContentItem {
	return m.children[parentID]
}

// Has reports whether parentID has at least one child in this pass.
func (m Map) Has(parentID string) bool {
	_, ok := m.children[parentID]
	return ok
}

// ParentIDs returns the keys in first-seen order.
func (m Map) ParentIDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len is the number of distinct parents.
func (m Map) Len() int { return len(m.order) }
