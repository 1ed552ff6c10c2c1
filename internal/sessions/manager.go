package sessions

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hyper-ai-inc/workbench/internal/pty"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSpawnFailed     = errors.New("failed to spawn shell")
	ErrShuttingDown    = errors.New("session manager is shutting down")
)

// Options configures a Manager
type Options struct {
	// Root is the working directory of every spawned shell
	Root string
	// Shell overrides pty.DefaultShell
	Shell  string
	Logger *zap.Logger
}

// OpenOptions configures a single session
type OpenOptions struct {
	Cols uint16
	Rows uint16
}

// Manager handles session lifecycle
type Manager struct {
	root   string
	shell  string
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a new session manager
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		root:     opts.Root,
		shell:    opts.Shell,
		logger:   logger.With(zap.String("component", "sessions")),
		sessions: make(map[string]*Session),
	}
}

// Open spawns a shell on a new pseudo-terminal and registers the session
func (m *Manager) Open(opts OpenOptions) (*Session, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrShuttingDown
	}

	id := uuid.New().String()
	shell := m.shell
	if shell == "" {
		shell = pty.DefaultShell()
	}

	p, err := pty.New(pty.Options{
		Shell: shell,
		Dir:   m.root,
		Env:   os.Environ(),
		Cols:  opts.Cols,
		Rows:  opts.Rows,
	})
	if err != nil {
		m.logger.Warn("spawn failed", zap.String("shell", shell), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	logger := m.logger.With(zap.String("session_id", id))
	session := newSession(id, p, m, logger)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		p.Close()
		return nil, ErrShuttingDown
	}
	m.sessions[id] = session
	m.mu.Unlock()

	session.start()
	logger.Info("session opened", zap.String("shell", shell), zap.Int("pid", p.Pid()))
	return session, nil
}

// Get retrieves a session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns the live sessions, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Created.Before(list[j].Created)
	})
	return list
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Shutdown closes all sessions and refuses new ones
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(session)
	}
	wg.Wait()
	m.logger.Info("all sessions closed", zap.Int("count", len(sessions)))
}
