package fs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidFilename = errors.New("invalid upload filename")

// Uploads is a write-only scratch area for files sent by the client.
// Filenames are reduced to their base component; no directory structure
// from the caller survives.
type Uploads struct {
	dir string
}

// NewUploads creates an upload area rooted at dir
func NewUploads(dir string) *Uploads {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Uploads{dir: filepath.Clean(dir)}
}

// Store writes content under the sanitized basename of filename and returns
// the absolute path written.
func (u *Uploads) Store(filename string, content []byte) (string, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(u.dir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	target := filepath.Join(u.dir, name)
	if err := os.WriteFile(target, content, 0644); err != nil {
		return "", err
	}
	return target, nil
}

// SanitizeFilename strips every directory component from filename. Both
// slash and backslash count as separators regardless of platform.
func SanitizeFilename(filename string) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch {
	case strings.TrimSpace(base) == "", base == ".", base == "..", base == "/":
		return "", ErrInvalidFilename
	case strings.ContainsRune(base, 0):
		return "", ErrInvalidFilename
	}
	return base, nil
}
