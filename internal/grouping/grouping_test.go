package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/internal/model"
)

func child(id, parent string) model.ContentItem {
	return model.ContentItem{ID: id, ParentItemID: &parent}
}

func TestGroup_SinglePassKeepsOrder(t *testing.T) {
	items := []model.ContentItem{
		{ID: "p1"},
		child("c1", "p1"),
		{ID: "p2"},
		child("c2", "p2"),
		child("c3", "p1"),
	}
	m := Group(items)

	assert.Equal(t, []string{"p1", "p2"}, m.ParentIDs())
	require.Len(t, m.Children("p1"), 2)
	assert.Equal(t, "c1", m.Children("p1")[0].ID)
	assert.Equal(t, "c3", m.Children("p1")[1].ID)
	assert.False(t, m.Has("c1"), "children are not parents")
}

func TestGroup_OrphanChildStillRecorded(t *testing.T) {
	m := Group([]model.ContentItem{child("c1", "elsewhere")})
	assert.True(t, m.Has("elsewhere"))
	assert.Equal(t, 1, m.Len())
}

func TestGroup_EmptyParentIDIgnored(t *testing.T) {
	m := Group([]model.ContentItem{child("c1", "")})
	assert.Equal(t, 0, m.Len())
}

func TestTracker_ObserveIsPure(t *testing.T) {
	tr := NewTracker()
	m := Group([]model.ContentItem{{ID: "p"}, child("a", "p"), child("b", "p")})

	assert.Equal(t, []string{"p"}, tr.Observe(m))
	assert.Equal(t, []string{"p"}, tr.Observe(m), "observe must not record anything")
	assert.False(t, tr.IsExpanded("p"))
}

func TestTracker_AutoExpandOnce(t *testing.T) {
	tr := NewTracker()
	m := Group([]model.ContentItem{{ID: "p"}, child("a", "p"), child("b", "p")})

	require.True(t, tr.Commit(tr.Observe(m)))
	assert.True(t, tr.IsExpanded("p"))

	tr.Toggle("p")
	assert.False(t, tr.IsExpanded("p"))

	// Parent disappears from the view, then comes back.
	assert.Empty(t, tr.Observe(Group(nil)))
	assert.Empty(t, tr.Observe(m))
	assert.False(t, tr.Commit([]string{"p"}), "a stale commit must not re-expand")
	assert.False(t, tr.IsExpanded("p"), "manual collapse persists across regroup")
}

func TestTracker_ToggleOnlyFlips(t *testing.T) {
	tr := NewTracker()
	tr.Toggle("x")
	assert.True(t, tr.IsExpanded("x"))
	assert.Equal(t, []string{"x"}, tr.Expanded())

	m := Group([]model.ContentItem{child("c", "x")})
	assert.Equal(t, []string{"x"}, tr.Observe(m), "toggling does not mark a parent as seen")

	tr.Toggle("x")
	assert.Empty(t, tr.Expanded())
	assert.Empty(t, tr.ExpandedSet())
}
