package pty

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestPTY(t *testing.T, opts Options) *PTY {
	t.Helper()
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("failed to create PTY: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// readUntil reads PTY output until it contains marker or the timeout fires.
func readUntil(t *testing.T, p *PTY, marker string) string {
	t.Helper()
	found := make(chan string, 1)
	go func() {
		buf := make([]byte, 1024)
		var output []byte
		for {
			n, err := p.Read(buf)
			if err != nil {
				found <- ""
				return
			}
			output = append(output, buf[:n]...)
			if bytes.Contains(output, []byte(marker)) {
				found <- string(output)
				return
			}
		}
	}()

	select {
	case out := <-found:
		if out == "" {
			t.Fatalf("PTY closed before %q appeared", marker)
		}
		return out
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %q in PTY output", marker)
	}
	return ""
}

func TestPTYWriteRead(t *testing.T) {
	p := newTestPTY(t, Options{})

	if _, err := p.Write([]byte("echo hel''lo\n")); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	readUntil(t, p, "hello")
}

func TestPTYWorkingDirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPTY(t, Options{Dir: dir})

	p.Write([]byte("pwd; echo pwd_''done\n"))
	out := readUntil(t, p, "pwd_done")
	if !strings.Contains(out, dir) {
		t.Errorf("expected shell to start in %s, got output %q", dir, out)
	}
}

func TestPTYInheritsEnvironment(t *testing.T) {
	p := newTestPTY(t, Options{Env: append(os.Environ(), "WORKBENCH_TEST_VAR=inherited_value")})

	p.Write([]byte("echo $WORKBENCH_TEST_VAR $TERM\n"))
	out := readUntil(t, p, "inherited_value xterm-256color")
	if out == "" {
		t.Error("expected environment variables in output")
	}
}

func TestPTYDefaultSize(t *testing.T) {
	p := newTestPTY(t, Options{})

	cols, rows, err := p.Size()
	if err != nil {
		t.Fatalf("failed to get size: %v", err)
	}
	if cols != DefaultCols || rows != DefaultRows {
		t.Errorf("expected %dx%d, got %dx%d", DefaultCols, DefaultRows, cols, rows)
	}
}

func TestPTYResize(t *testing.T) {
	p := newTestPTY(t, Options{})

	if err := p.Resize(120, 40); err != nil {
		t.Fatalf("failed to resize: %v", err)
	}
	cols, rows, err := p.Size()
	if err != nil {
		t.Fatalf("failed to get size: %v", err)
	}
	if cols != 120 || rows != 40 {
		t.Errorf("expected 120x40, got %dx%d", cols, rows)
	}

	if err := p.Resize(0, 40); err == nil {
		t.Error("expected error for zero columns")
	}
}

func TestPTYCloseKillsProcess(t *testing.T) {
	p, err := New(Options{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("failed to create PTY: %v", err)
	}
	pid := p.Pid()
	if !ProcessAlive(pid) {
		t.Fatal("expected shell process to be running")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if ProcessAlive(pid) {
		t.Error("expected shell process to be gone after Close")
	}
	if p.Alive() {
		t.Error("expected Alive to report false after Close")
	}

	// Writing after close should fail
	if _, err := p.Write([]byte("test")); err == nil {
		t.Error("expected error writing to closed PTY")
	}

	// Second close is a no-op
	if err := p.Close(); err != nil {
		t.Errorf("second close returned %v", err)
	}
}

func TestPTYDoneOnExit(t *testing.T) {
	p := newTestPTY(t, Options{})

	p.Write([]byte("exit 3\n"))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for process exit")
	}
	if p.ExitErr() == nil {
		t.Error("expected non-nil exit error for exit status 3")
	}
}

func TestPTYSpawnFailure(t *testing.T) {
	_, err := New(Options{Shell: "/nonexistent/shell"})
	if err == nil {
		t.Fatal("expected error spawning a missing shell")
	}
}

func TestDefaultShell(t *testing.T) {
	t.Setenv("SHELL", "/bin/custom-shell")
	if got := DefaultShell(); got != "/bin/custom-shell" {
		t.Errorf("expected $SHELL to win, got %q", got)
	}

	t.Setenv("SHELL", "")
	if got := DefaultShell(); got != "/bin/bash" && got != "/bin/sh" {
		t.Errorf("unexpected fallback shell %q", got)
	}
}
