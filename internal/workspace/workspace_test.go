package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Dir {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	return New(root)
}

func commitAll(t *testing.T, d *Dir) {
	t.Helper()
	_, err := d.git("add", "-A")
	require.NoError(t, err)
	_, err = d.git("commit", "-q", "-m", "fixture")
	require.NoError(t, err)
}

func TestListFiles_TrackedAndUntracked(t *testing.T) {
	d := newTestRepo(t)
	require.NoError(t, d.Write("tracked.py", "a = 1\n"))
	require.NoError(t, d.Write(".gitignore", "ignored.log\n"))
	commitAll(t, d)
	require.NoError(t, d.Write("untracked.py", "b = 2\n"))
	require.NoError(t, d.Write("ignored.log", "noise\n"))

	files, err := d.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "tracked.py", "untracked.py"}, files)
}

func TestWrite_CreatesParentDirs(t *testing.T) {
	d := newTestRepo(t)
	require.NoError(t, d.Write("pkg/sub/deep.py", "x = 1\n"))

	got, err := d.Read("pkg/sub/deep.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", got)

	info, err := os.Stat(filepath.Join(d.Root(), "pkg", "sub"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRead_MissingFile(t *testing.T) {
	d := newTestRepo(t)
	_, err := d.Read("absent.py")
	assert.Error(t, err)
}

func TestGrep(t *testing.T) {
	d := newTestRepo(t)
	require.NoError(t, d.Write("handlers.py", "def login_handler():\n    pass\n"))
	commitAll(t, d)

	out, err := d.Grep("login_handler")
	require.NoError(t, err)
	assert.Contains(t, out, "handlers.py")
	assert.Contains(t, out, "login_handler")

	// No matches is an empty result, not an error.
	out, err = d.Grep("nonexistent_symbol")
	require.NoError(t, err)
	assert.Empty(t, out)
}
