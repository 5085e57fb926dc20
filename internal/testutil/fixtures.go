// Package testutil holds fixtures and an in-memory API backend shared by
// package tests.
package testutil

import (
	"fmt"
	"sync/atomic"

	"contentcal/internal/model"
)

var itemCounter atomic.Int64

// ItemOption customizes NewItem.
type ItemOption func(*model.ContentItem)

func WithID(id string) ItemOption {
	return func(it *model.ContentItem) { it.ID = id }
}

func WithPublish(raw string) ItemOption {
	return func(it *model.ContentItem) { it.PublishDate = &raw }
}

func WithDue(raw string) ItemOption {
	return func(it *model.ContentItem) { it.DueDate = &raw }
}

func WithParent(id string) ItemOption {
	return func(it *model.ContentItem) { it.ParentItemID = &id }
}

func WithStatus(s model.Status) ItemOption {
	return func(it *model.ContentItem) { it.Status = s }
}

func WithBrand(b string) ItemOption {
	return func(it *model.ContentItem) { it.Brand = b }
}

func WithPlatform(p string) ItemOption {
	return func(it *model.ContentItem) { it.Platform = p }
}

func WithAssignee(a string) ItemOption {
	return func(it *model.ContentItem) { it.Assignee = a }
}

// NewItem returns a draft item with a unique id.
func NewItem(opts ...ItemOption) model.ContentItem {
	n := itemCounter.Add(1)
	it := model.ContentItem{
		ID:       fmt.Sprintf("item-%d", n),
		Title:    fmt.Sprintf("Item %d", n),
		Brand:    "Acme",
		Platform: "instagram",
		Status:   model.StatusDraft,
	}
	for _, o := range opts {
		o(&it)
	}
	return it
}
