// Package outline holds the canonical state of a teleprompter session: the
// ordered speech segments, the current position and the free-style flag.
package outline

// NoCurrent marks a state with no segment currently being spoken.
const NoCurrent = -1

// Status is the coverage state of a single segment.
type Status string

const (
	StatusPending Status = "pending"
	StatusCurrent Status = "current"
	StatusCovered Status = "covered"
	StatusSkipped Status = "skipped"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCurrent, StatusCovered, StatusSkipped:
		return true
	}
	return false
}

// Segment is one unit of the prepared outline.
type Segment struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Status Status `json:"status"`
}

// Item is a segment as delivered by the upload collaborator, before any
// status has been assigned.
type Item struct {
	ID   int
	Text string
}

// State is the canonical session state. Only the reconciler produces new
// values; everything else reads.
type State struct {
	Segments     []Segment
	CurrentIndex int
	FreeStyle    bool
}

// New seeds a state from an uploaded outline with every segment pending.
func New(items []Item) State {
	segs := make([]Segment, len(items))
	for i, it := range items {
		segs[i] = Segment{ID: it.ID, Text: it.Text, Status: StatusPending}
	}
	return State{Segments: segs, CurrentIndex: NoCurrent}
}

// HasCurrent reports whether a segment is currently being spoken.
func (s State) HasCurrent() bool {
	return s.CurrentIndex != NoCurrent
}

// Covered counts segments with status covered.
func (s State) Covered() int {
	n := 0
	for _, seg := range s.Segments {
		if seg.Status == StatusCovered {
			n++
		}
	}
	return n
}

// Progress returns the covered share of the outline as a whole percentage,
// rounded half up. An empty outline is 0%.
func (s State) Progress() int {
	total := len(s.Segments)
	if total == 0 {
		return 0
	}
	return (200*s.Covered() + total) / (2 * total)
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	c := s
	c.Segments = append([]Segment(nil), s.Segments...)
	return c
}
