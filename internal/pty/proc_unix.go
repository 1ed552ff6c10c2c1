//go:build !windows

package pty

import (
	"os"

	"golang.org/x/sys/unix"
)

// killProcessGroup kills the shell and everything in its process group.
// The shell is a session leader (setsid), so its pgid equals its pid.
func killProcessGroup(proc *os.Process) {
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil {
		_ = proc.Kill()
	}
}

// ProcessAlive reports whether a process with the given pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
