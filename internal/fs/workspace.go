// Package fs provides filesystem access confined to a single workspace root.
//
// Every path handed to a Workspace is resolved by Resolve before any
// filesystem call is made. Resolve canonicalizes the path (cleaning "." and
// ".." segments and following symlinks along the existing prefix) and then
// checks containment on a separator boundary, so neither traversal sequences,
// symlinks, nor sibling directories sharing the root's name prefix can
// escape the root.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

var (
	ErrAccessDenied = errors.New("access denied: path outside workspace root")
	ErrNotFound     = errors.New("file or directory not found")
	ErrIsDirectory  = errors.New("path is a directory")
)

// Entry is a single directory listing item.
type Entry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
}

// FileInfo contains metadata about a file or directory
type FileInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	IsDirectory bool      `json:"isDirectory"`
	ModTime     time.Time `json:"modTime"`
	Mode        string    `json:"mode"`
}

// Workspace provides scoped filesystem access
type Workspace struct {
	root string
}

// NewWorkspace creates a new workspace rooted at the given path
func NewWorkspace(root string) *Workspace {
	// Resolve symlinks in root so containment checks compare canonical paths
	// (e.g., on macOS /var -> /private/var)
	absRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		absRoot, _ = filepath.Abs(root)
	}
	return &Workspace{root: filepath.Clean(absRoot)}
}

// Root returns the workspace root path
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a caller-supplied path onto an absolute path inside the
// workspace. Absolute inputs are treated as relative to the root. The empty
// path resolves to the root itself.
func (w *Workspace) Resolve(path string) (string, error) {
	rel := strings.TrimLeft(filepath.FromSlash(path), `/\`)

	// Join cleans the result, collapsing "." and ".." lexically.
	full := filepath.Join(w.root, rel)
	if !IsPathWithin(full, w.root) {
		return "", ErrAccessDenied
	}

	resolved, err := evalExistingPrefix(full)
	if err != nil {
		return "", err
	}
	if !IsPathWithin(resolved, w.root) {
		return "", ErrAccessDenied
	}
	return resolved, nil
}

// evalExistingPrefix resolves symlinks along the longest existing prefix of
// path and re-appends the components that do not exist yet, so that files
// can be created under a directory that is itself a symlink.
func evalExistingPrefix(path string) (string, error) {
	var tail []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		// A dangling symlink would be followed on write; its target cannot
		// be checked, so refuse it.
		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return "", ErrAccessDenied
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// IsPathWithin checks if path is equal to or inside root.
// This is safer than strings.HasPrefix which would incorrectly match
// /workspace-evil as being within /workspace.
func IsPathWithin(path, root string) bool {
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// relative returns the slash-separated path of abs relative to the root.
func (w *Workspace) relative(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// List returns entries in a directory, directories first and then by name.
func (w *Workspace) List(path string) ([]Entry, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	result := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, Entry{
			Name:        entry.Name(),
			IsDirectory: entry.IsDir(),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsDirectory != result[j].IsDirectory {
			return result[i].IsDirectory
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// Read returns the contents of a file
func (w *Workspace) Read(path string) ([]byte, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrIsDirectory
	}

	return os.ReadFile(resolved)
}

// Create writes content to a file, creating parent directories as needed.
// An existing file is overwritten.
func (w *Workspace) Create(path string, content []byte) error {
	resolved, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if resolved == w.root {
		return ErrIsDirectory
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	return os.WriteFile(resolved, content, 0644)
}

// Save replaces the contents of a file. The parent directory must exist.
// A zero-length content truncates the file.
func (w *Workspace) Save(path string, content []byte) error {
	resolved, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if resolved == w.root {
		return ErrIsDirectory
	}

	return os.WriteFile(resolved, content, 0644)
}

// Delete removes a file or directory (recursively). A symlink is removed
// itself, never the tree it points at, wherever that tree lives.
func (w *Workspace) Delete(path string) error {
	if link, ok := w.symlinkPath(path); ok {
		return os.Remove(link)
	}

	resolved, err := w.Resolve(path)
	if err != nil {
		return err
	}

	// Don't allow deleting the workspace root itself
	if resolved == w.root {
		return ErrAccessDenied
	}

	if _, err := os.Lstat(resolved); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	return os.RemoveAll(resolved)
}

// symlinkPath returns the in-root location of path when its final component
// is a symlink.
func (w *Workspace) symlinkPath(path string) (string, bool) {
	lexical := filepath.Join(w.root, strings.TrimLeft(filepath.FromSlash(path), `/\`))
	parent, err := evalExistingPrefix(filepath.Dir(lexical))
	if err != nil || !IsPathWithin(parent, w.root) {
		return "", false
	}
	link := filepath.Join(parent, filepath.Base(lexical))
	info, err := os.Lstat(link)
	if err != nil || info.Mode()&os.ModeSymlink == 0 || link == w.root {
		return "", false
	}
	return link, true
}

// Stat returns information about a file or directory
func (w *Workspace) Stat(path string) (*FileInfo, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &FileInfo{
		Name:        info.Name(),
		Path:        w.relative(resolved),
		Size:        info.Size(),
		IsDirectory: info.IsDir(),
		ModTime:     info.ModTime(),
		Mode:        info.Mode().String(),
	}, nil
}
