// Package popover places the item detail panel next to the element that
// was clicked and tracks whether it is open.
package popover

import "sync"

const (
	// Gap separates the popover from its anchor.
	Gap = 8
	// DefaultMargin is the minimum inset from every viewport edge.
	DefaultMargin = 16
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is a viewport-relative bounding box.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Position returns the popover's top-left corner using DefaultMargin.
func Position(anchor Rect, size Size, viewport Size) Point {
	return PositionWithMargin(anchor, size, viewport, DefaultMargin)
}

// PositionWithMargin prefers below the anchor, left edges aligned. It flips
// above when the bottom would overflow and aligns right edges when the
// right side would overflow, then clamps to margin on every edge.
func PositionWithMargin(anchor Rect, size Size, viewport Size, margin float64) Point {
	p := Point{X: anchor.X, Y: anchor.Bottom() + Gap}

	if p.Y+size.H > viewport.H-margin {
		p.Y = anchor.Y - Gap - size.H
	}
	if p.X+size.W > viewport.W-margin {
		p.X = anchor.Right() - size.W
	}

	p.X = clamp(p.X, margin, viewport.W-margin-size.W)
	p.Y = clamp(p.Y, margin, viewport.H-margin-size.H)
	return p
}

// clamp bounds v to [lo, hi]. When the popover is larger than the viewport
// (hi < lo) the low edge wins so the top-left stays visible.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// Layout is the open popover.
type Layout struct {
	ItemID string `json:"item_id"`
	Anchor Rect   `json:"anchor"`
	Origin Point  `json:"origin"`
	Size   Size   `json:"size"`
}

// Bounds is the rectangle the popover covers.
func (l Layout) Bounds() Rect {
	return Rect{X: l.Origin.X, Y: l.Origin.Y, W: l.Size.W, H: l.Size.H}
}

// State holds at most one open popover.
type State struct {
	mu     sync.Mutex
	size   Size
	margin float64
	open   *Layout
}

// NewState returns a closed popover of the given size.
func NewState(size Size, margin float64) *State {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &State{size: size, margin: margin}
}

// Open positions the popover for itemID. The position is recomputed on
// every call since anchors move with scrolling and resizing.
func (s *State) Open(itemID string, anchor Rect, viewport Size) Layout {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := Layout{
		ItemID: itemID,
		Anchor: anchor,
		Origin: PositionWithMargin(anchor, s.size, viewport, s.margin),
		Size:   s.size,
	}
	s.open = &l
	return l
}

// Close discards the open popover, if any.
func (s *State) Close() {
	s.mu.Lock()
	s.open = nil
	s.mu.Unlock()
}

// HandleKey closes on Escape and reports whether it did.
func (s *State) HandleKey(key string) bool {
	if key != "Escape" && key != "Esc" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.open != nil
	s.open = nil
	return was
}

// HandleClick closes when p is outside both the popover and its anchor, and
// reports whether it did.
func (s *State) HandleClick(p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return false
	}
	if s.open.Bounds().Contains(p) || s.open.Anchor.Contains(p) {
		return false
	}
	s.open = nil
	return true
}

// Current returns the open popover.
func (s *State) Current() (Layout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return Layout{}, false
	}
	return *s.open, true
}
