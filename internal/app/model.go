package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/zhaorenjie77/smart-teleprompter/internal/matcher"
	"github.com/zhaorenjie77/smart-teleprompter/internal/outline"
	"github.com/zhaorenjie77/smart-teleprompter/internal/projector"
	"github.com/zhaorenjie77/smart-teleprompter/internal/recognition"
	"github.com/zhaorenjie77/smart-teleprompter/internal/reconcile"
	"github.com/zhaorenjie77/smart-teleprompter/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// TransientErrorTimeout is how long server-side errors stay on screen.
const TransientErrorTimeout = 5 * time.Second

const unsupportedMessage = "Speech recognition is not available on this system"

// Options configures a Model.
type Options struct {
	// Source produces utterances. It must not be listening yet.
	Source *recognition.Source
	// URL is the matching service WebSocket endpoint.
	URL string
	// Title is shown in the header, usually the script file name.
	Title   string
	Outline []outline.Item
	Logger  *log.Logger
	// SessionOptions are passed to every matching session.
	SessionOptions []matcher.Option
}

// Model is the root bubbletea model. Update is the only writer of the
// outline state and the listening flag.
type Model struct {
	source         *recognition.Source
	url            string
	sessionOptions []matcher.Option
	logger         *log.Logger
	title          string

	// Listening state
	listening   bool
	captureRun  uint64
	session     *matcher.Session
	unsupported bool

	// Outline
	state        outline.State
	effects      projector.Effects
	scrollTarget int

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool
	errorSeq       int

	// Status
	statusText string
}

// New creates a new Model with every segment pending.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	state := outline.New(opts.Outline)
	return Model{
		source:         opts.Source,
		url:            opts.URL,
		sessionOptions: opts.SessionOptions,
		logger:         logger,
		title:          opts.Title,
		state:          state,
		effects:        projector.Project(state, state),
		scrollTarget:   outline.NoCurrent,
		statusText:     "Press Space to start",
	}
}

// Init starts waiting for recognition events.
func (m Model) Init() tea.Cmd {
	return waitForCapture(m.source)
}

// waitForCapture blocks for the next recognition event. It is re-issued
// after every CaptureMsg so exactly one read is outstanding.
func waitForCapture(src *recognition.Source) tea.Cmd {
	return func() tea.Msg {
		return CaptureMsg{Event: <-src.Events()}
	}
}

// openSessionCmd dials the matching service. Closing the session cancels
// the dial.
func openSessionCmd(s *matcher.Session) tea.Cmd {
	return func() tea.Msg {
		if err := s.Open(context.Background()); err != nil {
			return SessionErrorMsg{ID: s.ID(), Err: err}
		}
		return SessionOpenedMsg{ID: s.ID()}
	}
}

// readMessageCmd reads the next inbound message from the session.
func readMessageCmd(s *matcher.Session) tea.Cmd {
	return func() tea.Msg {
		msg, err := s.Next()
		if err != nil {
			return SessionErrorMsg{ID: s.ID(), Err: err}
		}
		return SessionMessageMsg{ID: s.ID(), Message: msg}
	}
}

// clearTransientErrorCmd fires after a delay to clear the transient error
// numbered seq.
func clearTransientErrorCmd(seq int) tea.Cmd {
	return tea.Tick(TransientErrorTimeout, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{Seq: seq}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case CaptureMsg:
		cmd := m.handleCapture(msg.Event)
		return m, tea.Batch(cmd, waitForCapture(m.source))

	case SessionOpenedMsg:
		if !m.isCurrent(msg.ID) {
			return m, nil
		}
		m.logger.Info("session open", "session", msg.ID)
		m.statusText = "Listening"
		return m, readMessageCmd(m.session)

	case SessionMessageMsg:
		if !m.isCurrent(msg.ID) {
			m.logger.Debug("drop stale message", "session", msg.ID)
			return m, nil
		}
		cmd := m.handleMessage(msg.Message)
		return m, tea.Batch(cmd, readMessageCmd(m.session))

	case SessionErrorMsg:
		if !m.isCurrent(msg.ID) {
			return m, nil
		}
		m.logger.Error("session failed", "session", msg.ID, "err", msg.Err)
		m.stopListening()
		m.setError(msg.Err.Error(), false)
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient && msg.Seq == m.errorSeq {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) isCurrent(id string) bool {
	return m.session != nil && m.session.ID() == id
}

// handleCapture forwards utterances to the current session and turns
// capture faults into a stop.
func (m *Model) handleCapture(ev recognition.Event) tea.Cmd {
	// Events from an earlier listening period are never forwarded.
	if !m.listening || ev.Run != m.captureRun {
		m.logger.Debug("drop capture event", "run", ev.Run, "current", m.captureRun)
		return nil
	}

	if ev.Err != nil {
		m.logger.Error("capture failed", "err", ev.Err)
		m.stopListening()
		if errors.Is(ev.Err, recognition.ErrUnsupported) {
			m.unsupported = true
			m.setError(unsupportedMessage, false)
		} else {
			m.setError(ev.Err.Error(), false)
		}
		return nil
	}

	if m.session == nil {
		return nil
	}
	if err := m.session.Send(ev.Text); err != nil {
		m.logger.Debug("drop utterance", "session", m.session.ID(), "err", err)
	}
	return nil
}

// handleMessage reconciles an inbound message into the outline state.
func (m *Model) handleMessage(msg matcher.Message) tea.Cmd {
	next, err := reconcile.Apply(m.state, msg)
	if err != nil {
		var serverErr *reconcile.ServerError
		if errors.As(err, &serverErr) {
			m.logger.Warn("server error", "session", m.session.ID(), "message", serverErr.Message)
		} else {
			m.logger.Warn("reject snapshot", "session", m.session.ID(), "err", err)
		}
		return m.setError(err.Error(), true)
	}

	effects := projector.Project(m.state, next)
	m.state = next
	m.effects = effects
	if effects.Scroll {
		m.scrollTarget = effects.ScrollTo
	}
	return nil
}

// startListening starts capture and dials a fresh matching session. It
// refuses once the recognizer reported it is unsupported.
func (m *Model) startListening() tea.Cmd {
	if !m.unsupported {
		if err := m.source.Available(); errors.Is(err, recognition.ErrUnsupported) {
			m.logger.Error("capture unavailable", "err", err)
			m.unsupported = true
		}
	}
	if m.unsupported {
		m.setError(unsupportedMessage, false)
		return nil
	}
	m.captureRun = m.source.Start()
	m.session = matcher.NewSession(m.url, m.sessionOptions...)
	m.listening = true
	m.statusText = "Connecting..."
	m.logger.Info("start listening", "session", m.session.ID())
	return openSessionCmd(m.session)
}

// stopListening stops capture first, then closes the session.
func (m *Model) stopListening() {
	if !m.listening {
		return
	}
	m.source.Stop()
	if m.session != nil {
		m.logger.Info("stop listening", "session", m.session.ID())
		m.session.Close()
		m.session = nil
	}
	m.listening = false
	m.statusText = "Paused"
}

func (m *Model) setError(message string, transient bool) tea.Cmd {
	m.errorSeq++
	m.errorMessage = message
	m.errorTransient = transient
	if transient {
		return clearTransientErrorCmd(m.errorSeq)
	}
	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.stopListening()
		return m, tea.Quit

	case key.Matches(msg, keys.Toggle):
		if m.listening {
			m.stopListening()
			return m, nil
		}
		return m, m.startListening()

	case key.Matches(msg, keys.Dismiss):
		m.errorMessage = ""
		m.errorTransient = false
		return m, nil
	}

	return m, nil
}

func (m Model) outlineVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + banner(1) + dividers(2) + error(1) + footer(1)
	reserved := 7
	return max(5, m.height-reserved)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	if m.effects.FreeStyleBanner {
		sections = append(sections, m.renderBanner())
	}
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderOutline(m.width, m.outlineVisibleLines()))
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("TELEPROMPTER")
	if m.title != "" {
		title += ui.DimStyle.Render(" · " + m.title)
	}
	return title
}

func (m Model) renderStatusBar() string {
	var dot string
	if m.listening {
		dot = ui.ListeningDotStyle.Render("● LIVE")
	} else {
		dot = ui.PausedDotStyle.Render("○ PAUSED")
	}

	status := ui.StatusStyle.Render(m.statusText)
	return dot + "  " + renderProgressBar(m.effects.Progress) + "  " + status
}

func renderProgressBar(pct int) string {
	const barLen = 20
	filled := min(barLen, max(0, pct*barLen/100))

	bar := ui.ProgressFilledStyle.Render(strings.Repeat("█", filled)) +
		ui.ProgressEmptyStyle.Render(strings.Repeat("░", barLen-filled))
	return bar + fmt.Sprintf(" %3d%%", pct)
}

func (m Model) renderBanner() string {
	return padRight(ui.BannerStyle.Render("FREE STYLE · off script"), m.width)
}

// renderOutline lays out every row and shows the window centred on the
// last scroll target.
func (m Model) renderOutline(width, height int) string {
	rows := m.effects.Rows
	if len(rows) == 0 {
		return padLines([]string{ui.DimStyle.Render("  Outline is empty")}, height)
	}

	const prefixWidth = 4
	textWidth := max(10, width-prefixWidth)
	indent := strings.Repeat(" ", prefixWidth)

	var lines []string
	targetLine := 0
	for i, row := range rows {
		if i == m.scrollTarget {
			targetLine = len(lines)
		}
		style := ui.RowStyle(row.Class())
		wrapped := wrapText(row.Text, textWidth)
		lines = append(lines, style.Render("  "+statusMarker(row.Status)+" "+wrapped[0]))
		for _, wl := range wrapped[1:] {
			lines = append(lines, style.Render(indent+wl))
		}
	}

	start := 0
	if m.scrollTarget != outline.NoCurrent {
		start = targetLine - height/2
	}
	start = max(0, min(start, len(lines)-height))
	end := min(len(lines), start+height)

	return padLines(lines[start:end], height)
}

func statusMarker(s outline.Status) string {
	switch s {
	case outline.StatusCurrent:
		return "▶"
	case outline.StatusCovered:
		return "✓"
	case outline.StatusSkipped:
		return "↷"
	default:
		return "·"
	}
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	toggle := keys.Toggle.Help().Desc
	if m.listening {
		toggle = "Pause"
	}
	parts = append(parts, ui.FooterKeyStyle.Render(keys.Toggle.Help().Key)+ui.FooterDescStyle.Render(" "+toggle))
	if m.errorMessage != "" {
		parts = append(parts, renderBinding(keys.Dismiss))
	}
	parts = append(parts, renderBinding(keys.Quit))

	return strings.Join(parts, "  ")
}

func renderBinding(b key.Binding) string {
	h := b.Help()
	return ui.FooterKeyStyle.Render(h.Key) + ui.FooterDescStyle.Render(" "+h.Desc)
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func padLines(lines []string, height int) string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			// Scripts without spaces (CJK) wrap at the column limit.
			for lipgloss.Width(word) > width {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				var head string
				head, word = splitAtWidth(word, width)
				lines = append(lines, head)
			}
			if word == "" {
				continue
			}
			if current == "" {
				current = word
			} else if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// splitAtWidth cuts s after at most width display columns. The head always
// holds at least one rune.
func splitAtWidth(s string, width int) (string, string) {
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width && i > 0 {
			return s[:i], s[i:]
		}
		w += rw
	}
	return s, ""
}
