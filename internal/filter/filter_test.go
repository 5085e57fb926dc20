package filter

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/internal/model"
)

func collection() []model.ContentItem {
	statuses := []model.Status{
		model.StatusDraft, model.StatusBlocked, model.StatusIdea, model.StatusBlocked,
		model.StatusReview, model.StatusScheduled, model.StatusApproved, model.StatusPublished,
		model.StatusBlocked, model.StatusDraft,
	}
	items := make([]model.ContentItem, len(statuses))
	for i, s := range statuses {
		items[i] = model.ContentItem{
			ID:       fmt.Sprintf("it-%02d", i),
			Brand:    []string{"Acme Outdoors", "Northwind", "acme kitchen"}[i%3],
			Platform: []string{"instagram", "facebook"}[i%2],
			Assignee: []string{"Sam Lee", "Riya", "sam ortiz"}[i%3],
			Status:   s,
		}
	}
	return items
}

func ids(items []model.ContentItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestApply_StatusBlockedKeepsOrder(t *testing.T) {
	got := Apply(collection(), model.Filters{Status: model.StatusBlocked})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"it-01", "it-03", "it-08"}, ids(got))
}

func TestApply_EmptyFilterReturnsInput(t *testing.T) {
	items := collection()
	got := Apply(items, model.Filters{})
	assert.Equal(t, items, got)
}

func TestApply_CaseInsensitiveSubstrings(t *testing.T) {
	got := Apply(collection(), model.Filters{Brand: "ACME"})
	for _, it := range got {
		assert.Contains(t, []string{"Acme Outdoors", "acme kitchen"}, it.Brand)
	}
	assert.Len(t, got, 7)

	got = Apply(collection(), model.Filters{Assignee: "sam"})
	assert.Len(t, got, 7)
}

func TestApply_ExactPlatformAndANDSemantics(t *testing.T) {
	assert.Empty(t, Apply(collection(), model.Filters{Platform: "insta"}), "platform is an exact match")

	got := Apply(collection(), model.Filters{Platform: "facebook", Status: model.StatusBlocked})
	assert.Equal(t, []string{"it-01", "it-03"}, ids(got))

	got = Apply(collection(), model.Filters{Platform: "facebook", Status: model.StatusBlocked, Brand: "north"})
	assert.Equal(t, []string{"it-01"}, ids(got))
}

func TestQueryRoundTrip(t *testing.T) {
	f := model.Filters{Brand: "acme", Status: model.StatusReview}
	q := Query(f)
	assert.Equal(t, url.Values{"brand": {"acme"}, "status": {"review"}}, q)
	assert.Equal(t, f, FromQuery(q))
}
