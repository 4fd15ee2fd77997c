// Package reconcile folds messages from the matching service into the
// canonical outline state.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/zhaorenjie77/smart-teleprompter/internal/matcher"
	"github.com/zhaorenjie77/smart-teleprompter/internal/outline"
)

// ErrMalformedSnapshot is returned for snapshots that would break the
// canonical state's invariants. The state is left untouched.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// ServerError is an application error reported by the matching service.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "matching service: " + e.Message
}

// Apply returns the state that results from receiving msg while in cur.
//
// A snapshot replaces segments, current index and free-style flag as one
// unit. An error message, or a snapshot that fails validation, returns cur
// unchanged together with the error to surface.
func Apply(cur outline.State, msg matcher.Message) (outline.State, error) {
	if msg.IsError() {
		return cur, &ServerError{Message: msg.Error}
	}
	if err := validate(cur, msg); err != nil {
		return cur, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	return outline.State{
		Segments:     append([]outline.Segment(nil), msg.Segments...),
		CurrentIndex: *msg.CurrentIdx,
		FreeStyle:    msg.IsFreeStyle,
	}, nil
}

func validate(cur outline.State, msg matcher.Message) error {
	if msg.CurrentIdx == nil {
		return errors.New("missing current_idx")
	}
	if len(msg.Segments) != len(cur.Segments) {
		return fmt.Errorf("got %d segments, outline has %d", len(msg.Segments), len(cur.Segments))
	}

	idx := *msg.CurrentIdx
	if idx != outline.NoCurrent && (idx < 0 || idx >= len(msg.Segments)) {
		return fmt.Errorf("current_idx %d out of range", idx)
	}

	for i, seg := range msg.Segments {
		if seg.ID != cur.Segments[i].ID {
			return fmt.Errorf("segment %d has id %d, outline has %d", i, seg.ID, cur.Segments[i].ID)
		}
		if !seg.Status.Valid() {
			return fmt.Errorf("segment %d has unknown status %q", i, seg.Status)
		}
		if seg.Status == outline.StatusCurrent && i != idx {
			return fmt.Errorf("segment %d is current but current_idx is %d", i, idx)
		}
	}
	return nil
}
