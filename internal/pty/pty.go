// Package pty spawns interactive shells attached to pseudo-terminals.
package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

const (
	DefaultCols uint16 = 80
	DefaultRows uint16 = 30
)

// Options configures a new PTY
type Options struct {
	Shell string   // defaults to DefaultShell()
	Dir   string   // working directory of the shell
	Env   []string // defaults to os.Environ()
	Cols  uint16
	Rows  uint16
}

// PTY represents a pseudo-terminal with a running child process
type PTY struct {
	file *os.File
	cmd  *exec.Cmd

	mu     sync.Mutex
	closed bool

	waitOnce sync.Once
	exited   chan struct{}
	waitErr  error
}

// New starts the shell on a fresh pseudo-terminal
func New(opts Options) (*PTY, error) {
	shell := opts.Shell
	if shell == "" {
		shell = DefaultShell()
	}
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = DefaultCols
	}
	if rows == 0 {
		rows = DefaultRows
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	cmd := exec.Command(shell)
	cmd.Dir = opts.Dir
	cmd.Env = append(env[:len(env):len(env)], "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return nil, err
	}

	p := &PTY{
		file:   ptmx,
		cmd:    cmd,
		exited: make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

// wait reaps the child exactly once so the process never lingers as a zombie.
func (p *PTY) wait() {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.exited)
	})
}

// Pid returns the process ID of the shell
func (p *PTY) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Read reads from the PTY
func (p *PTY) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	file := p.file
	p.mu.Unlock()

	return file.Read(buf)
}

// Write writes to the PTY
func (p *PTY) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	file := p.file
	p.mu.Unlock()

	return file.Write(data)
}

// Resize changes the PTY window size
func (p *PTY) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return errors.New("pty: invalid window size")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return os.ErrClosed
	}

	return pty.Setsize(p.file, &pty.Winsize{
		Cols: cols,
		Rows: rows,
	})
}

// Size returns the current window size
func (p *PTY) Size() (cols, rows uint16, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, 0, os.ErrClosed
	}

	ws, err := pty.GetsizeFull(p.file)
	if err != nil {
		return 0, 0, err
	}
	return ws.Cols, ws.Rows, nil
}

// Close kills the process, releases the terminal and waits until the
// process has been reaped.
func (p *PTY) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.exited
		return nil
	}
	p.closed = true

	if p.cmd.Process != nil {
		killProcessGroup(p.cmd.Process)
	}
	err := p.file.Close()
	p.mu.Unlock()

	<-p.exited
	return err
}

// Done returns a channel that closes when the PTY process exits
func (p *PTY) Done() <-chan struct{} {
	return p.exited
}

// ExitErr returns how the process ended, or nil while it is still running.
func (p *PTY) ExitErr() error {
	select {
	case <-p.exited:
		return p.waitErr
	default:
		return nil
	}
}

// Alive reports whether the shell process still exists
func (p *PTY) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
	}
	return ProcessAlive(p.Pid())
}
