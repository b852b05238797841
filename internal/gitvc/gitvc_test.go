package gitvc

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo creates a working repo with one commit and a local bare
// "origin" so push works without a network.
func newTestRepo(t *testing.T) *Client {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	origin := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	require.NoError(t, exec.Command("git", "init", "-q", "--bare", origin).Run())

	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("remote", "add", "origin", origin)
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hello\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "init")

	return New(root)
}

func TestCurrentBranch(t *testing.T) {
	c := newTestRepo(t)
	branch, err := c.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestCreateOrCheckout_Idempotent(t *testing.T) {
	c := newTestRepo(t)

	require.NoError(t, c.CreateOrCheckout("dave-bot/feat/x"))
	branch, err := c.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "dave-bot/feat/x", branch)

	// Back to main, then again: plain checkout, no error.
	require.NoError(t, c.CreateOrCheckout("main"))
	require.NoError(t, c.CreateOrCheckout("dave-bot/feat/x"))
	branch, err = c.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "dave-bot/feat/x", branch)
}

func TestCommitAndPush(t *testing.T) {
	c := newTestRepo(t)
	require.NoError(t, c.CreateOrCheckout("dave-bot/feat/x"))
	require.NoError(t, os.WriteFile(filepath.Join(c.repoPath, "new.py"), []byte("x = 1\n"), 0o644))

	require.NoError(t, c.CommitAndPush("dave-bot/feat/x", "feat: add x"))

	msg, err := c.git("log", "-1", "--format=%s")
	require.NoError(t, err)
	assert.Equal(t, "feat: add x", msg)

	// The branch landed on origin.
	out, err := c.git("ls-remote", "--heads", "origin", "dave-bot/feat/x")
	require.NoError(t, err)
	assert.Contains(t, out, "dave-bot/feat/x")

	// Pushing again with nothing new to commit still succeeds.
	require.NoError(t, c.CommitAndPush("dave-bot/feat/x", "feat: add x"))
}

func TestDiff_TrackedFile(t *testing.T) {
	c := newTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(c.repoPath, "README.md"), []byte("hello\nworld\n"), 0o644))

	out, err := c.Diff("README.md", "hello\nworld\n")
	require.NoError(t, err)
	assert.Contains(t, out, "+world")

	stat, err := DiffStat(out)
	require.NoError(t, err)
	assert.Equal(t, "+1 -0", stat)
}

func TestDiff_NewFile(t *testing.T) {
	c := newTestRepo(t)
	content := "a = 1\nb = 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(c.repoPath, "fresh.py"), []byte(content), 0o644))

	out, err := c.Diff("fresh.py", content)
	require.NoError(t, err)
	assert.Contains(t, out, "new file mode")
	assert.Contains(t, out, "+a = 1")
	assert.Contains(t, out, "+b = 2")

	stat, err := DiffStat(out)
	require.NoError(t, err)
	assert.Equal(t, "+2 -0", stat)
}

func TestChangedFiles(t *testing.T) {
	c := newTestRepo(t)
	require.NoError(t, c.CreateOrCheckout("dave-bot/feat/x"))
	require.NoError(t, os.WriteFile(filepath.Join(c.repoPath, "one.py"), []byte("1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.repoPath, "two.py"), []byte("2\n"), 0o644))
	_, err := c.git("add", "-A")
	require.NoError(t, err)
	_, err = c.git("commit", "-q", "-m", "add files")
	require.NoError(t, err)

	files, err := c.ChangedFiles("main")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.py", "two.py"}, files)
}

func TestDiffStat_Empty(t *testing.T) {
	stat, err := DiffStat("")
	require.NoError(t, err)
	assert.Empty(t, stat)
}
