package projector

import (
	"testing"

	"github.com/zhaorenjie77/smart-teleprompter/internal/outline"
)

func stateAt(idx int, free bool) outline.State {
	s := outline.New([]outline.Item{{ID: 0}, {ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}})
	s.CurrentIndex = idx
	s.FreeStyle = free
	return s
}

func TestScrollFiresOnlyOnDistinctIndex(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		scroll   bool
	}{
		{"unchanged", 2, 2, false},
		{"moved", 2, 5, true},
		{"to none", 5, outline.NoCurrent, false},
		{"none to none", outline.NoCurrent, outline.NoCurrent, false},
		{"from none", outline.NoCurrent, 0, true},
		{"backwards", 4, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := Project(stateAt(tt.from, false), stateAt(tt.to, false))
			if eff.Scroll != tt.scroll {
				t.Errorf("scroll = %v, want %v", eff.Scroll, tt.scroll)
			}
			if tt.scroll && eff.ScrollTo != tt.to {
				t.Errorf("scrollTo = %d, want %d", eff.ScrollTo, tt.to)
			}
			if !tt.scroll && eff.ScrollTo != outline.NoCurrent {
				t.Errorf("scrollTo = %d without scroll", eff.ScrollTo)
			}
		})
	}
}

func TestScrollCountOverSequence(t *testing.T) {
	seq := []int{outline.NoCurrent, 2, 2, 5, outline.NoCurrent, outline.NoCurrent, 5}
	fired := 0
	for i := 1; i < len(seq); i++ {
		if Project(stateAt(seq[i-1], false), stateAt(seq[i], false)).Scroll {
			fired++
		}
	}
	// none→2, 2→5, none→5
	if fired != 3 {
		t.Errorf("scroll fired %d times, want 3", fired)
	}
}

func TestFreeStyleBannerFollowsLatestState(t *testing.T) {
	if !Project(stateAt(1, false), stateAt(outline.NoCurrent, true)).FreeStyleBanner {
		t.Error("banner should show when free-style")
	}
	if Project(stateAt(1, true), stateAt(1, false)).FreeStyleBanner {
		t.Error("banner should hide as soon as free-style clears")
	}
}

func TestRowsMarkActiveSegment(t *testing.T) {
	s := stateAt(2, false)
	s.Segments[0].Status = outline.StatusCovered
	s.Segments[2].Status = outline.StatusCurrent

	eff := Project(outline.New(nil), s)

	if len(eff.Rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(eff.Rows))
	}
	if got := eff.Rows[2].Class(); got != "current active" {
		t.Errorf("rows[2].Class() = %q", got)
	}
	if got := eff.Rows[0].Class(); got != "covered" {
		t.Errorf("rows[0].Class() = %q", got)
	}
	for i, r := range eff.Rows {
		if r.Active != (i == 2) {
			t.Errorf("rows[%d].Active = %v", i, r.Active)
		}
	}
}

func TestProjectProgress(t *testing.T) {
	s := stateAt(outline.NoCurrent, false)
	s.Segments[0].Status = outline.StatusCovered
	s.Segments[1].Status = outline.StatusCovered
	s.Segments[2].Status = outline.StatusCovered

	if got := Project(s, s).Progress; got != 50 {
		t.Errorf("progress = %d, want 50", got)
	}
	if got := Project(outline.New(nil), outline.New(nil)).Progress; got != 0 {
		t.Errorf("empty progress = %d, want 0", got)
	}
}
