// Package recognition turns a platform speech recognizer into a stream of
// finalized utterances with a start/stop lifecycle.
package recognition

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultRestartDelay is how long the source waits before resuming capture
// after a no-speech timeout.
const DefaultRestartDelay = time.Second

var (
	// ErrNoSpeech means capture ended because nothing was heard. The source
	// restarts capture on its own.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrUnsupported means this platform has no usable recognizer.
	ErrUnsupported = errors.New("speech recognition unsupported")
)

// Result is one recognition hypothesis. Only final results are utterances.
type Result struct {
	Text  string
	Final bool
}

// Stream is one running capture.
type Stream interface {
	// Next blocks for the next result. It must return an error once the
	// stream is closed.
	Next() (Result, error)
	Close() error
}

// Recognizer is the platform speech-to-text capability.
type Recognizer interface {
	Listen(ctx context.Context) (Stream, error)
}

// Checker is implemented by recognizers that can tell cheaply, without
// capturing, whether they can run on this machine.
type Checker interface {
	Available() error
}

// Event is emitted by a Source: either a finalized utterance or a capture
// fault that ended listening. Run is the value Start returned for the
// listening period that produced it.
type Event struct {
	Text string
	Err  error
	Run  uint64
}

// Option configures a Source.
type Option func(*Source)

// WithRestartDelay overrides DefaultRestartDelay.
func WithRestartDelay(d time.Duration) Option {
	return func(s *Source) { s.restartDelay = d }
}

// WithLogger sets the source logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source owns the capture lifecycle. Start and Stop never block on I/O; a
// goroutine per capture owns the underlying Stream.
type Source struct {
	rec          Recognizer
	restartDelay time.Duration
	logger       *log.Logger
	events       chan Event

	mu        sync.Mutex
	listening bool
	run       uint64
	gen       uint64
	cancel    context.CancelFunc
	restart   *time.Timer
}

// NewSource wraps rec.
func NewSource(rec Recognizer, opts ...Option) *Source {
	s := &Source{
		rec:          rec,
		restartDelay: DefaultRestartDelay,
		logger:       log.New(io.Discard),
		events:       make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events delivers utterances and faults for the lifetime of the source.
func (s *Source) Events() <-chan Event { return s.events }

// Available reports ErrUnsupported when the recognizer knows up front that
// it cannot capture. Recognizers that cannot tell are assumed available.
func (s *Source) Available() error {
	if p, ok := s.rec.(Checker); ok {
		return p.Available()
	}
	return nil
}

// Listening reports whether the source should currently be capturing.
func (s *Source) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Start begins capture and returns the run that tags its events. No-op
// if already listening, in which case the current run is returned.
// Events left over from earlier runs are discarded.
func (s *Source) Start() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return s.run
	}
	s.drain()
	s.listening = true
	s.run++
	s.launch()
	return s.run
}

// drain drops buffered events without blocking. Caller holds mu.
func (s *Source) drain() {
	for {
		select {
		case ev := <-s.events:
			s.logger.Debug("drop stale event", "run", ev.Run)
		default:
			return
		}
	}
}

// Stop ends capture and cancels a pending restart. No-op if not listening.
// An event already in flight when Stop runs may still be delivered, so
// consumers drop events that arrive while they are not listening.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return
	}
	s.listening = false
	s.gen++
	s.halt()
}

// launch starts a new capture generation. Caller holds mu.
func (s *Source) launch() {
	s.halt()
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.capture(ctx, s.gen, s.run)
}

// halt cancels the running capture and any pending restart. Caller holds mu.
func (s *Source) halt() {
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Source) capture(ctx context.Context, gen, run uint64) {
	stream, err := s.rec.Listen(ctx)
	if err != nil {
		s.fault(ctx, gen, run, err)
		return
	}
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer func() {
		if stop() {
			stream.Close()
		}
	}()

	s.logger.Debug("capture started", "gen", gen)
	for {
		res, err := stream.Next()
		if err != nil {
			s.fault(ctx, gen, run, err)
			return
		}
		text := strings.TrimSpace(res.Text)
		if !res.Final || text == "" {
			continue
		}
		s.logger.Info("heard", "text", text)
		select {
		case s.events <- Event{Text: text, Run: run}:
		case <-ctx.Done():
			return
		}
	}
}

// fault handles the end of capture generation gen.
func (s *Source) fault(ctx context.Context, gen, run uint64, err error) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if gen != s.gen || !s.listening {
		s.mu.Unlock()
		return
	}

	if errors.Is(err, ErrNoSpeech) {
		s.logger.Debug("no speech, restarting", "delay", s.restartDelay)
		s.restart = time.AfterFunc(s.restartDelay, func() { s.resume(gen) })
		s.mu.Unlock()
		return
	}

	s.listening = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Error("capture failed", "error", err)
	select {
	case s.events <- Event{Err: err, Run: run}:
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
}

// resume restarts capture after a no-speech timeout, but only if nothing
// stopped or restarted the source since generation gen ended.
func (s *Source) resume(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening || gen != s.gen {
		return
	}
	s.restart = nil
	s.launch()
}
