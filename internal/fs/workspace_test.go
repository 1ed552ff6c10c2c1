package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	ws := NewWorkspace(t.TempDir())
	return ws, ws.Root()
}

func TestResolveInsideRoot(t *testing.T) {
	ws, root := setupTestWorkspace(t)

	cases := map[string]string{
		"":                root,
		".":               root,
		"/":               root,
		"sub/./file.txt":  filepath.Join(root, "sub", "file.txt"),
		"/sub/file.txt":   filepath.Join(root, "sub", "file.txt"),
		"sub/../a.txt":    filepath.Join(root, "a.txt"),
		"a/b/../../c.txt": filepath.Join(root, "c.txt"),
	}
	for input, want := range cases {
		got, err := ws.Resolve(input)
		require.NoError(t, err, "resolve %q", input)
		assert.Equal(t, want, got, "resolve %q", input)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	for _, input := range []string{
		"..",
		"../../etc/passwd",
		"/../../../etc/passwd",
		"foo/../../etc/passwd",
		"sub/../../outside.txt",
	} {
		_, err := ws.Resolve(input)
		assert.ErrorIs(t, err, ErrAccessDenied, "resolve %q", input)
	}
}

func TestResolveRejectsSiblingPrefix(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	evil := filepath.Join(parent, "ws-evil")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, os.Mkdir(evil, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(evil, "secret.txt"), []byte("x"), 0644))

	ws := NewWorkspace(root)
	_, err := ws.Resolve("../ws-evil/secret.txt")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.False(t, IsPathWithin(ws.Root()+"-evil", ws.Root()))
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := ws.Read("link/secret.txt")
	assert.ErrorIs(t, err, ErrAccessDenied)

	err = ws.Create("link/new.txt", []byte("bad"))
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, statErr := os.Stat(filepath.Join(outside, "new.txt"))
	assert.True(t, os.IsNotExist(statErr), "file must not be created outside the root")
}

func TestResolveRejectsDanglingSymlink(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	target := filepath.Join(t.TempDir(), "created-by-escape.txt")
	require.NoError(t, os.Symlink(target, filepath.Join(root, "dangling")))

	err := ws.Save("dangling", []byte("bad"))
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResolveAllowsSymlinkInsideRoot(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "real"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")))

	require.NoError(t, ws.Create("alias/file.txt", []byte("hi")))
	data, err := os.ReadFile(filepath.Join(root, "real", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestWorkspaceList(t *testing.T) {
	ws, root := setupTestWorkspace(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("n"), 0644))

	entries, err := ws.List(".")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "sub", IsDirectory: true},
		{Name: "a.txt", IsDirectory: false},
		{Name: "b.txt", IsDirectory: false},
	}, entries)

	entries, err = ws.List("sub")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWorkspaceListEmptyDirectory(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	entries, err := ws.List("")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestWorkspaceListNotFound(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	_, err := ws.List("/nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkspaceCreateReadRoundTrip(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	require.NoError(t, ws.Create("a.txt", []byte("hello")))
	data, err := ws.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, ws.Save("a.txt", []byte("")))
	data, err = ws.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "", string(data))
}

func TestWorkspaceCreateOverwrites(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	require.NoError(t, ws.Create("a.txt", []byte("first")))
	require.NoError(t, ws.Create("a.txt", []byte("second")))

	data, err := ws.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWorkspaceCreateMakesParents(t *testing.T) {
	ws, root := setupTestWorkspace(t)

	require.NoError(t, ws.Create("/a/b/c/file.txt", []byte("nested content")))
	data, err := os.ReadFile(filepath.Join(root, "a", "b", "c", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested content", string(data))
}

func TestWorkspaceSaveRequiresParent(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	err := ws.Save("missing/dir/file.txt", []byte("x"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestWorkspaceReadNotFound(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	_, err := ws.Read("/nonexistent.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkspaceReadDirectory(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))

	_, err := ws.Read("dir")
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestWorkspacePathTraversalWrite(t *testing.T) {
	ws, _ := setupTestWorkspace(t)

	assert.ErrorIs(t, ws.Create("/../../../tmp/evil.txt", []byte("bad")), ErrAccessDenied)
	assert.ErrorIs(t, ws.Save("../evil.txt", []byte("bad")), ErrAccessDenied)
}

func TestWorkspaceDelete(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "toremove", "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "toremove", "subdir", "f.txt"), []byte("y"), 0644))

	require.NoError(t, ws.Delete("/toremove"))
	_, err := os.Stat(filepath.Join(root, "toremove"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, ws.Delete("/toremove"), ErrNotFound)
	assert.ErrorIs(t, ws.Delete("/"), ErrAccessDenied)
	assert.ErrorIs(t, ws.Delete("../../tmp"), ErrAccessDenied)
}

func TestWorkspaceStat(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dir", "statme.txt"), []byte("hello world"), 0644))

	info, err := ws.Stat("dir/statme.txt")
	require.NoError(t, err)
	assert.Equal(t, "statme.txt", info.Name)
	assert.Equal(t, "/dir/statme.txt", info.Path)
	assert.EqualValues(t, 11, info.Size)
	assert.False(t, info.IsDirectory)

	info, err = ws.Stat("dir")
	require.NoError(t, err)
	assert.True(t, info.IsDirectory)

	_, err = ws.Stat("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkspaceDeleteSymlinkKeepsTarget(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "real"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real", "keep.txt"), []byte("k"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")))

	require.NoError(t, ws.Delete("alias"))

	_, err := os.Lstat(filepath.Join(root, "alias"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "real", "keep.txt"))
	assert.NoError(t, err)
}

func TestWorkspaceDeleteSymlinkPointingOutside(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "keep.txt"), []byte("k"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	// The link's target is unreachable through the API, but the link itself
	// lives in the root and can be removed.
	_, err := ws.Read("escape/keep.txt")
	assert.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, ws.Delete("escape"))

	_, err = os.Lstat(filepath.Join(root, "escape"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(outside, "keep.txt"))
	assert.NoError(t, err)
}

func TestWorkspaceDeleteDanglingSymlink(t *testing.T) {
	ws, root := setupTestWorkspace(t)
	require.NoError(t, os.Symlink(filepath.Join(t.TempDir(), "gone"), filepath.Join(root, "dangling")))

	require.NoError(t, ws.Delete("dangling"))
	_, err := os.Lstat(filepath.Join(root, "dangling"))
	assert.True(t, os.IsNotExist(err))
}

func TestIsPathWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "ws")
	assert.True(t, IsPathWithin(root, root))
	assert.True(t, IsPathWithin(filepath.Join(root, "a", "b"), root))
	assert.False(t, IsPathWithin(root+"-evil", root))
	assert.False(t, IsPathWithin(filepath.Dir(root), root))
}
