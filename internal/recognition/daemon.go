package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zhaorenjie77/smart-teleprompter/internal/daemon"
)

const stopTimeout = time.Second

// DaemonRecognizer captures speech through the local speech daemon.
type DaemonRecognizer struct {
	SocketPath string
	Locale     string
	Device     string
	Logger     *log.Logger
}

// Available reports ErrUnsupported when no daemon socket exists.
func (r *DaemonRecognizer) Available() error {
	if _, err := os.Stat(r.SocketPath); err != nil {
		return fmt.Errorf("%w: no speech daemon at %s", ErrUnsupported, r.SocketPath)
	}
	return nil
}

// Listen subscribes to the daemon's transcription events and starts
// recording. A missing socket means no recognizer on this machine.
func (r *DaemonRecognizer) Listen(ctx context.Context) (Stream, error) {
	if err := r.Available(); err != nil {
		return nil, err
	}

	events, err := daemon.Dial(ctx, r.SocketPath)
	if err != nil {
		return nil, err
	}
	if err := events.Subscribe(daemon.EventPartial, daemon.EventSegment, daemon.EventError, daemon.EventStatus); err != nil {
		events.Close()
		return nil, err
	}

	cmds, err := daemon.Dial(ctx, r.SocketPath)
	if err != nil {
		events.Close()
		return nil, err
	}
	resp, err := cmds.SendCommand(daemon.Command{Cmd: daemon.CmdStart, Locale: r.Locale, Device: r.Device})
	if err == nil && !resp.OK {
		err = fmt.Errorf("start recording: %s", resp.Error)
	}
	if err != nil {
		cmds.Close()
		events.Close()
		return nil, err
	}

	logger := r.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger.Info("recording", "daemonSession", resp.SessionID, "locale", r.Locale)
	return &daemonStream{cmds: cmds, events: events, logger: logger}, nil
}

type daemonStream struct {
	cmds   *daemon.Client
	events *daemon.Client
	logger *log.Logger

	closeOnce sync.Once
}

func (s *daemonStream) Next() (Result, error) {
	for {
		ev, err := s.events.ReadEvent()
		if err != nil {
			return Result{}, err
		}

		switch ev.Event {
		case daemon.EventPartial:
			return Result{Text: ev.Text}, nil
		case daemon.EventSegment:
			return Result{Text: ev.Text, Final: true}, nil
		case daemon.EventError:
			if ev.Code == daemon.CodeNoSpeech {
				return Result{}, ErrNoSpeech
			}
			if ev.Transient != nil && *ev.Transient {
				s.logger.Warn("daemon recovered", "code", ev.Code, "message", ev.Message)
				continue
			}
			return Result{}, fmt.Errorf("daemon: %s", ev.Message)
		case daemon.EventStatus:
			if ev.Recording != nil && !*ev.Recording {
				return Result{}, errors.New("recording stopped by daemon")
			}
		}
	}
}

func (s *daemonStream) Close() error {
	s.closeOnce.Do(func() {
		s.cmds.SetDeadline(time.Now().Add(stopTimeout))
		if _, err := s.cmds.SendCommand(daemon.Command{Cmd: daemon.CmdStop}); err != nil {
			s.logger.Warn("stop recording", "error", err)
		}
		s.cmds.Close()
		s.events.Close()
	})
	return nil
}
