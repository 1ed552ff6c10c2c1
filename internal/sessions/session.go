package sessions

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyper-ai-inc/workbench/internal/pty"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

const readBufferSize = 32 * 1024

// State is the lifecycle position of a terminal session
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Info is a point-in-time description of a session
type Info struct {
	ID        string    `json:"id"`
	Pid       int       `json:"pid"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session owns one shell process on one pseudo-terminal for the lifetime of
// a single client connection.
type Session struct {
	ID      string
	Created time.Time

	pty     *pty.PTY
	manager *Manager
	logger  *zap.Logger

	state     atomic.Int32
	output    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(id string, p *pty.PTY, m *Manager, logger *zap.Logger) *Session {
	s := &Session{
		ID:      id,
		Created: time.Now(),
		pty:     p,
		manager: m,
		logger:  logger,
		output:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) start() {
	s.state.Store(int32(StateActive))
	go s.readLoop()
}

// readLoop forwards PTY output to the output channel in the order it was
// produced. The channel is closed once the PTY stops producing.
func (s *Session) readLoop() {
	defer close(s.output)

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.output <- chunk:
			case <-s.closed:
				return
			}
		}
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Debug("pty read ended", zap.Error(err))
				// The shell exited on its own; release the session.
				go s.Close()
			}
			return
		}
	}
}

// Output yields PTY output chunks. It is closed when the process exits or the
// session is closed.
func (s *Session) Output() <-chan []byte {
	return s.output
}

// Write sends raw input bytes to the shell
func (s *Session) Write(data []byte) error {
	if s.State() != StateActive {
		return ErrSessionClosed
	}
	if _, err := s.pty.Write(data); err != nil {
		return fmt.Errorf("write pty: %w", err)
	}
	return nil
}

// Resize changes the terminal geometry
func (s *Session) Resize(cols, rows uint16) error {
	if s.State() != StateActive {
		return ErrSessionClosed
	}
	return s.pty.Resize(cols, rows)
}

// Size reports the current terminal geometry
func (s *Session) Size() (cols, rows uint16, err error) {
	return s.pty.Size()
}

// Close kills the shell, releases the terminal and removes the session from
// its manager. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.closed)

		err = s.pty.Close()
		s.state.Store(int32(StateClosed))

		if s.manager != nil {
			s.manager.remove(s.ID)
		}
		s.logger.Info("session closed",
			zap.Int("pid", s.pty.Pid()),
			zap.NamedError("exit", s.pty.ExitErr()))
	})
	return err
}

// Exited returns a channel that is closed once the shell process has exited
// and been reaped, whether it quit on its own or was killed by Close.
func (s *Session) Exited() <-chan struct{} {
	return s.pty.Done()
}

// ExitErr reports how the shell ended, or nil while it is running or after a
// clean exit.
func (s *Session) ExitErr() error {
	return s.pty.ExitErr()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Pid() int {
	return s.pty.Pid()
}

// Alive reports whether the shell process still exists
func (s *Session) Alive() bool {
	return s.pty.Alive()
}

func (s *Session) Info() Info {
	return Info{
		ID:        s.ID,
		Pid:       s.Pid(),
		State:     s.State().String(),
		CreatedAt: s.Created,
	}
}
