package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	PingInterval   = 30 * time.Second
	WriteTimeout   = 5 * time.Second
	CloseTimeout   = time.Second
	OutboundBuffer = 32
)

var (
	// ErrNotReady is returned by Send when the connection is not open yet
	// (or any more). The utterance is dropped.
	ErrNotReady = errors.New("session not ready")
	// ErrBufferFull is returned by Send when the writer is backed up.
	ErrBufferFull = errors.New("outbound buffer full")
	ErrClosed     = errors.New("session closed")
	ErrReopen     = errors.New("session already opened")
	ErrProtocol   = errors.New("protocol error")
)

// State is the lifecycle position of a Session.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Session.
type Option func(*Session)

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithPingInterval sets the keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(s *Session) { s.pingInterval = d }
}

// Session is one logical connection to the matching service, scoped to a
// single listening period. It is opened at most once and never reused.
//
// Send may be called from any goroutine. Next must have a single caller.
type Session struct {
	id           string
	url          string
	dialer       *websocket.Dialer
	logger       *log.Logger
	pingInterval time.Duration

	mu         sync.Mutex
	state      State
	opened     bool
	conn       *websocket.Conn
	cancelDial context.CancelFunc

	outbound chan Utterance
	done     chan struct{}
}

// NewSession prepares a session for url. Nothing is dialed until Open.
func NewSession(url string, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		url:          url,
		dialer:       websocket.DefaultDialer,
		logger:       log.New(io.Discard),
		pingInterval: PingInterval,
		state:        StateConnecting,
		outbound:     make(chan Utterance, OutboundBuffer),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID uniquely identifies this session.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open dials the service. If Close runs while the dial is in flight the
// dial is cancelled, any established connection is dropped and ErrClosed
// is returned.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.opened {
		s.mu.Unlock()
		return ErrReopen
	}
	s.opened = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancelDial = cancel
	s.mu.Unlock()
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)

	s.mu.Lock()
	s.cancelDial = nil
	if s.state == StateClosed {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		s.state = StateClosed
		close(s.done)
		s.mu.Unlock()
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	s.logger.Info("open", "session", s.id, "url", s.url)
	go s.writeLoop(conn)
	return nil
}

// Send queues one utterance for the service. It never blocks: when the
// session is not open it returns ErrNotReady, when the writer is behind
// it returns ErrBufferFull. In both cases the utterance is lost.
func (s *Session) Send(text string) error {
	if s.State() != StateOpen {
		return ErrNotReady
	}
	select {
	case s.outbound <- Utterance{Text: text}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Next blocks until the service pushes a message. Decode failures are
// reported as ErrProtocol; after Close it returns ErrClosed.
func (s *Session) Next() (Message, error) {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state == StateClosed {
		return Message{}, ErrClosed
	}
	if conn == nil {
		return Message{}, ErrNotReady
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if s.State() == StateClosed {
			return Message{}, ErrClosed
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Message{}, fmt.Errorf("service closed connection: %w", err)
		}
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: decode message: %v", ErrProtocol, err)
	}
	return msg, nil
}

// Close tears the session down. Safe to call more than once and from any
// state, including while Open is dialing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	close(s.done)
	conn, cancel := s.conn, s.cancelDial
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}

	s.logger.Info("close", "session", s.id)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(CloseTimeout))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close websocket: %w", err)
	}
	return nil
}

// writeLoop is the only goroutine writing data frames to conn.
func (s *Session) writeLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case u := <-s.outbound:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := conn.WriteJSON(u); err != nil {
				s.logger.Error("send utterance", "session", s.id, "error", err)
				conn.Close()
				return
			}
			s.logger.Debug("sent", "session", s.id, "text", u.Text)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				s.logger.Error("ping", "session", s.id, "error", err)
				conn.Close()
				return
			}
		}
	}
}
