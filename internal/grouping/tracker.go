package grouping

import "sort"

// Tracker owns expand/collapse state for one calendar.
//
// seen grows monotonically: once a parent has been auto-expanded it is
// never auto-expanded again, so a manual collapse sticks for the lifetime
// of the tracker.
type Tracker struct {
	expanded map[string]struct{}
	seen     map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		expanded: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Observe returns the parents in m that have never been seen. It does not
// modify the tracker, so it is safe to call from a render pass.
func (t *Tracker) Observe(m Map) []string {
	var fresh []string
	for _, id := range m.order {
		if _, ok := t.seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

// Commit marks ids as seen and expands those not seen before. Already-seen
// ids are left untouched, so committing a stale Observe result twice is
// harmless. It reports whether anything changed.
func (t *Tracker) Commit(ids []string) bool {
	changed := false
	for _, id := range ids {
		if _, ok := t.seen[id]; ok {
			continue
		}
		t.seen[id] = struct{}{}
		t.expanded[id] = struct{}{}
		changed = true
	}
	return changed
}

// Toggle flips expanded membership for id.
func (t *Tracker) Toggle(id string) {
	if _, ok := t.expanded[id]; ok {
		delete(t.expanded, id)
		return
	}
	t.expanded[id] = struct{}{}
}

func (t *Tracker) IsExpanded(id string) bool {
	_, ok := t.expanded[id]
	return ok
}

// Expanded returns a sorted copy of the expanded set.
func (t *Tracker) Expanded() []string {
	out := make([]string, 0, len(t.expanded))
	for id := range t.expanded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExpandedSet returns a snapshot usable by pure view builders.
func (t *Tracker) ExpandedSet() map[string]bool {
	out := make(map[string]bool, len(t.expanded))
	for id := range t.expanded {
		out[id] = true
	}
	return out
}
