package notes

import "contentcal/internal/model"

// Treatment is how a note color renders in the grid.
type Treatment struct {
	Background string `json:"background"`
	Border     string `json:"border"`
	Text       string `json:"text"`
}

var defaultTreatment = Treatment{Background: "#f4f4f5", Border: "#d4d4d8", Text: "#27272a"}

var palette = map[model.NoteColor]Treatment{
	model.NoteColorYellow: {Background: "#fef9c3", Border: "#facc15", Text: "#713f12"},
	model.NoteColorBlue:   {Background: "#dbeafe", Border: "#60a5fa", Text: "#1e3a8a"},
	model.NoteColorGreen:  {Background: "#dcfce7", Border: "#4ade80", Text: "#14532d"},
	model.NoteColorRed:    {Background: "#fee2e2", Border: "#f87171", Text: "#7f1d1d"},
	model.NoteColorPurple: {Background: "#f3e8ff", Border: "#c084fc", Text: "#581c87"},
	model.NoteColorOrange: {Background: "#ffedd5", Border: "#fb923c", Text: "#7c2d12"},
}

// NormalizeColor maps nil, empty and unknown values to the default color.
func NormalizeColor(c *model.NoteColor) model.NoteColor {
	if c == nil {
		return model.NoteColorDefault
	}
	if _, ok := palette[*c]; !ok {
		return model.NoteColorDefault
	}
	return *c
}

// TreatmentFor returns the display treatment for c. Legacy or unknown
// values get the default treatment.
func TreatmentFor(c *model.NoteColor) Treatment {
	if t, ok := palette[NormalizeColor(c)]; ok {
		return t
	}
	return defaultTreatment
}

// Styled is a note with the treatment the grid paints it with.
type Styled struct {
	model.CalendarNote
	Treatment Treatment `json:"treatment"`
}

// Style attaches the palette treatment to every note. The result is never
// nil so it encodes as an empty JSON array.
func Style(ns []model.CalendarNote) []Styled {
	out := make([]Styled, 0, len(ns))
	for _, n := range ns {
		out = append(out, Styled{CalendarNote: n, Treatment: TreatmentFor(n.Color)})
	}
	return out
}
