// Package projector derives the UI side effects of a state transition.
package projector

import "github.com/zhaorenjie77/smart-teleprompter/internal/outline"

// Row is the render model of one segment.
type Row struct {
	ID     int
	Text   string
	Status outline.Status
	Active bool
}

// Class is the visual-state key of the row: its status, plus "active"
// for the segment at the current index.
func (r Row) Class() string {
	if r.Active {
		return string(r.Status) + " active"
	}
	return string(r.Status)
}

// Effects is what the UI must do after moving to a new state.
type Effects struct {
	// Scroll is set when the segment at ScrollTo should be centred.
	Scroll   bool
	ScrollTo int

	FreeStyleBanner bool
	Progress        int
	Rows            []Row
}

// Project computes the effects of going from prev to next. It is a pure
// function of its arguments.
func Project(prev, next outline.State) Effects {
	eff := Effects{
		ScrollTo:        outline.NoCurrent,
		FreeStyleBanner: next.FreeStyle,
		Progress:        next.Progress(),
		Rows:            Rows(next),
	}
	if next.HasCurrent() && next.CurrentIndex != prev.CurrentIndex {
		eff.Scroll = true
		eff.ScrollTo = next.CurrentIndex
	}
	return eff
}

// Rows maps every segment of s to its render model.
func Rows(s outline.State) []Row {
	rows := make([]Row, len(s.Segments))
	for i, seg := range s.Segments {
		rows[i] = Row{
			ID:     seg.ID,
			Text:   seg.Text,
			Status: seg.Status,
			Active: i == s.CurrentIndex,
		}
	}
	return rows
}
