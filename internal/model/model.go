package model

import "strings"

// Status is the approval lifecycle stage of a content item.
type Status string

const (
	StatusIdea      Status = "idea"
	StatusDraft     Status = "draft"
	StatusReview    Status = "review"
	StatusApproved  Status = "approved"
	StatusBlocked   Status = "blocked"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusIdea,
	StatusDraft,
	StatusReview,
	StatusApproved,
	StatusBlocked,
	StatusScheduled,
	StatusPublished,
}

// Rank returns the position of s in Statuses, or -1 for an unknown value.
func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool { return s.Rank() >= 0 }

// ContentItem is a per-brand/per-product post owned by the external item
// API. Dates are kept exactly as the API sent them: the shape of the raw
// string matters for all-day detection.
type ContentItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Brand    string `json:"brand"`
	Product  string `json:"product,omitempty"`
	Platform string `json:"platform"`
	Status   Status `json:"status"`

	PublishDate *string `json:"publish_date,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`

	// ParentItemID is a weak back-reference used only for grouping
	// social post variants under their parent.
	ParentItemID *string `json:"parent_item_id,omitempty"`

	Assignee string `json:"assignee"`

	HeroReady        bool `json:"hero_ready"`
	InfographicReady bool `json:"infographic_ready"`
	FacebookApproved bool `json:"facebook_approved"`
}

// ParentID returns the parent identifier or "" when the item has none.
func (it ContentItem) ParentID() string {
	if it.ParentItemID == nil {
		return ""
	}
	return *it.ParentItemID
}

// Visibility controls who sees a calendar note.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
)

// NoteColor is a palette name. The empty value is the default treatment.
type NoteColor string

const (
	NoteColorDefault NoteColor = ""
	NoteColorYellow  NoteColor = "yellow"
	NoteColorBlue    NoteColor = "blue"
	NoteColorGreen   NoteColor = "green"
	NoteColorRed     NoteColor = "red"
	NoteColorPurple  NoteColor = "purple"
	NoteColorOrange  NoteColor = "orange"
)

// NoteColors lists the named palette entries (default excluded).
var NoteColors = []NoteColor{
	NoteColorYellow,
	NoteColorBlue,
	NoteColorGreen,
	NoteColorRed,
	NoteColorPurple,
	NoteColorOrange,
}

// OverlayNoteIDPrefix marks notes synthesized from subscribed iCalendar
// feeds. They never exist in the notes API.
const OverlayNoteIDPrefix = "ics:"

// CalendarNote is a free-form note pinned to a calendar day. Notes have a
// lifecycle independent of content items.
type CalendarNote struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"`
	Text       string     `json:"text"`
	Color      *NoteColor `json:"color"`
	Visibility Visibility `json:"visibility"`
	CreatedBy  string     `json:"created_by"`

	// Source is empty for user notes and the feed id for overlay notes.
	Source   string `json:"source,omitempty"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

// IsOverlay reports whether n came from a subscribed feed.
func (n CalendarNote) IsOverlay() bool {
	return n.ReadOnly || strings.HasPrefix(n.ID, OverlayNoteIDPrefix)
}

// Filters is the output of the calendar filter bar. Empty fields do not
// constrain.
type Filters struct {
	Brand    string `json:"brand,omitempty"`
	Platform string `json:"platform,omitempty"`
	Status   Status `json:"status,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// IsZero reports whether no predicate is set.
func (f Filters) IsZero() bool {
	return strings.TrimSpace(f.Brand) == "" &&
		strings.TrimSpace(f.Platform) == "" &&
		strings.TrimSpace(string(f.Status)) == "" &&
		strings.TrimSpace(f.Assignee) == ""
}

// ItemDraft seeds the item creation form, e.g. when converting a note.
type ItemDraft struct {
	Title       string `json:"title"`
	PublishDate string `json:"publish_date"`
	Status      Status `json:"status"`
}

// Stats summarizes the item collection for the dashboard header.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}
