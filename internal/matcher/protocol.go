// Package matcher owns the connection to the remote matching service: it
// sends finalized utterances and streams back authoritative outline
// snapshots over a WebSocket.
package matcher

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/zhaorenjie77/smart-teleprompter/internal/outline"
)

// SpeechPath is the matching service endpoint, relative to the backend URL.
const SpeechPath = "/ws/speech"

// Utterance is sent to the service for every finalized phrase.
type Utterance struct {
	Text string `json:"text"`
}

// Message is pushed by the service. It is either a snapshot (Segments,
// CurrentIdx, IsFreeStyle) or an application error (Error set).
type Message struct {
	Segments    []outline.Segment `json:"segments,omitempty"`
	CurrentIdx  *int              `json:"current_idx,omitempty"`
	IsFreeStyle bool              `json:"is_free_style"`
	Error       string            `json:"error,omitempty"`
}

// IsError reports whether the message carries a server-side error.
func (m Message) IsError() bool { return m.Error != "" }

// IntPtr returns a pointer to an int value. Convenience for building messages.
func IntPtr(i int) *int { return &i }

// WebSocketURL derives the speech endpoint from the backend's HTTP base URL.
func WebSocketURL(backend string) (string, error) {
	backend = strings.TrimSpace(backend)
	if backend == "" {
		return "", fmt.Errorf("backend url is not configured")
	}
	u, err := url.Parse(backend)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend url %q has no host", backend)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + SpeechPath
	return u.String(), nil
}
