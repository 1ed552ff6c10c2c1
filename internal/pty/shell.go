package pty

import (
	"os"
	"runtime"
)

// DefaultShell returns the preferred shell for PTY sessions.
// Windows hosts get PowerShell, though New cannot spawn it there yet:
// creack/pty has no ConPTY support. Elsewhere $SHELL wins when set,
// otherwise /bin/bash or /bin/sh.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell.exe"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}
