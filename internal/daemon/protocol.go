// Package daemon speaks the NDJSON protocol of the local speech daemon that
// captures microphone audio and recognizes it. Commands go out one per
// line; the daemon answers each with one Response line and, once
// subscribed, streams Event lines.
package daemon

// Command names understood by the daemon.
const (
	CmdSubscribe = "subscribe"
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdStatus    = "status"
)

// Event names streamed by the daemon.
const (
	EventPartial = "partial"
	EventSegment = "segment"
	EventError   = "error"
	EventStatus  = "status"
)

// CodeNoSpeech is the error code the daemon reports when capture timed out
// without hearing any speech.
const CodeNoSpeech = "no-speech"

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string   `json:"cmd"`
	Locale string   `json:"locale,omitempty"`
	Device string   `json:"device,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId,omitempty"`
	Recording *bool  `json:"recording,omitempty"`
	Error     string `json:"error,omitempty"`
	Status    string `json:"status,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Event is streamed from the daemon to subscribed clients. Transient marks
// an error the daemon recovers from on its own.
type Event struct {
	Event     string `json:"event"`
	Text      string `json:"text,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Transient *bool  `json:"transient,omitempty"`
	Recording *bool  `json:"recording,omitempty"`
}
