package reconcile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/zhaorenjie77/smart-teleprompter/internal/matcher"
	"github.com/zhaorenjie77/smart-teleprompter/internal/outline"
)

func loaded(n int) outline.State {
	var items []outline.Item
	for i := 0; i < n; i++ {
		items = append(items, outline.Item{ID: i, Text: "seg"})
	}
	return outline.New(items)
}

func snapshot(idx int, free bool, statuses ...outline.Status) matcher.Message {
	var segs []outline.Segment
	for i, st := range statuses {
		segs = append(segs, outline.Segment{ID: i, Text: "seg", Status: st})
	}
	return matcher.Message{Segments: segs, CurrentIdx: matcher.IntPtr(idx), IsFreeStyle: free}
}

func TestApplySnapshotReplacesState(t *testing.T) {
	cur := loaded(4)
	msg := snapshot(2, false,
		outline.StatusCovered, outline.StatusCovered, outline.StatusCurrent, outline.StatusPending)

	next, err := Apply(cur, msg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if !reflect.DeepEqual(next.Segments, msg.Segments) {
		t.Errorf("segments = %+v, want %+v", next.Segments, msg.Segments)
	}
	if next.CurrentIndex != 2 {
		t.Errorf("currentIndex = %d, want 2", next.CurrentIndex)
	}
	if next.FreeStyle {
		t.Error("freeStyle should be false")
	}
	if next.Progress() != 50 {
		t.Errorf("progress = %d, want 50", next.Progress())
	}
}

func TestApplyMapsMinusOneToNoCurrent(t *testing.T) {
	cur := loaded(2)
	cur.CurrentIndex = 1

	next, err := Apply(cur, snapshot(-1, true, outline.StatusCovered, outline.StatusPending))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.HasCurrent() || next.CurrentIndex != outline.NoCurrent {
		t.Errorf("currentIndex = %d, want NoCurrent", next.CurrentIndex)
	}
	if !next.FreeStyle {
		t.Error("freeStyle should be true")
	}
}

func TestApplyDoesNotAliasMessage(t *testing.T) {
	msg := snapshot(0, false, outline.StatusCovered, outline.StatusPending)
	next, err := Apply(loaded(2), msg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	msg.Segments[1].Status = outline.StatusSkipped
	if next.Segments[1].Status != outline.StatusPending {
		t.Error("state shares memory with the inbound message")
	}
}

func TestApplyErrorMessageLeavesStateUnchanged(t *testing.T) {
	cur, _ := Apply(loaded(3), snapshot(1, false,
		outline.StatusCovered, outline.StatusCurrent, outline.StatusPending))

	next, err := Apply(cur, matcher.Message{Error: "embedding failed"})

	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if se.Message != "embedding failed" {
		t.Errorf("message = %q", se.Message)
	}
	if !reflect.DeepEqual(next, cur) {
		t.Errorf("state changed on error message: %+v", next)
	}
}

func TestApplyRejectsMalformedSnapshots(t *testing.T) {
	tests := []struct {
		name string
		msg  matcher.Message
	}{
		{"missing current_idx", matcher.Message{Segments: snapshot(0, false,
			outline.StatusPending, outline.StatusPending, outline.StatusPending).Segments}},
		{"too few segments", snapshot(-1, false, outline.StatusPending)},
		{"too many segments", snapshot(-1, false,
			outline.StatusPending, outline.StatusPending, outline.StatusPending, outline.StatusPending)},
		{"index past end", snapshot(3, false,
			outline.StatusPending, outline.StatusPending, outline.StatusPending)},
		{"negative index", snapshot(-2, false,
			outline.StatusPending, outline.StatusPending, outline.StatusPending)},
		{"unknown status", snapshot(-1, false,
			outline.StatusPending, "done", outline.StatusPending)},
		{"current elsewhere", snapshot(0, false,
			outline.StatusCovered, outline.StatusCurrent, outline.StatusPending)},
		{"two current", snapshot(1, false,
			outline.StatusCurrent, outline.StatusCurrent, outline.StatusPending)},
		{"current without index", snapshot(-1, false,
			outline.StatusPending, outline.StatusCurrent, outline.StatusPending)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := loaded(3)
			next, err := Apply(cur, tt.msg)
			if !errors.Is(err, ErrMalformedSnapshot) {
				t.Fatalf("err = %v, want ErrMalformedSnapshot", err)
			}
			if !reflect.DeepEqual(next, cur) {
				t.Errorf("state changed on malformed snapshot: %+v", next)
			}
		})
	}
}

func TestApplyRejectsReorderedIDs(t *testing.T) {
	msg := snapshot(-1, false, outline.StatusPending, outline.StatusPending)
	msg.Segments[0].ID, msg.Segments[1].ID = 1, 0

	if _, err := Apply(loaded(2), msg); !errors.Is(err, ErrMalformedSnapshot) {
		t.Errorf("err = %v, want ErrMalformedSnapshot", err)
	}
}

func TestApplyEmptyOutline(t *testing.T) {
	next, err := Apply(loaded(0), matcher.Message{CurrentIdx: matcher.IntPtr(-1)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Progress() != 0 {
		t.Errorf("progress = %d, want 0", next.Progress())
	}
}

// At most one segment is current, and it is the one at CurrentIndex.
func TestApplyKeepsSingleCurrent(t *testing.T) {
	cur := loaded(4)
	msgs := []matcher.Message{
		snapshot(0, false, outline.StatusCurrent, outline.StatusPending, outline.StatusPending, outline.StatusPending),
		snapshot(2, false, outline.StatusCovered, outline.StatusSkipped, outline.StatusCurrent, outline.StatusPending),
		snapshot(1, false, outline.StatusCovered, outline.StatusCurrent, outline.StatusCurrent, outline.StatusPending),
		snapshot(-1, true, outline.StatusCovered, outline.StatusSkipped, outline.StatusCovered, outline.StatusPending),
		snapshot(3, false, outline.StatusCovered, outline.StatusSkipped, outline.StatusCovered, outline.StatusCovered),
	}

	for i, msg := range msgs {
		cur, _ = Apply(cur, msg)

		count := 0
		for j, seg := range cur.Segments {
			if seg.Status == outline.StatusCurrent {
				count++
				if j != cur.CurrentIndex {
					t.Errorf("step %d: current segment %d but index %d", i, j, cur.CurrentIndex)
				}
			}
		}
		if count > 1 {
			t.Errorf("step %d: %d current segments", i, count)
		}
	}
}
