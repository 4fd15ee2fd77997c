package app

import (
	"github.com/zhaorenjie77/smart-teleprompter/internal/matcher"
	"github.com/zhaorenjie77/smart-teleprompter/internal/recognition"
)

// CaptureMsg wraps an event from the recognition source.
type CaptureMsg struct {
	Event recognition.Event
}

// SessionOpenedMsg is sent when a matching session finished dialing.
type SessionOpenedMsg struct {
	ID string
}

// SessionMessageMsg carries one inbound message from a matching session.
type SessionMessageMsg struct {
	ID      string
	Message matcher.Message
}

// SessionErrorMsg is sent when a matching session failed to open or its
// read loop ended.
type SessionErrorMsg struct {
	ID  string
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout. Seq
// identifies the error it was scheduled for.
type ClearTransientErrorMsg struct {
	Seq int
}
