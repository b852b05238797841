// Package gitvc wraps the git and gh CLIs for the branch, commit, and pull
// request operations a run performs.
package gitvc

import (
	"fmt"
	"os/exec"
	"strings"
)

// Client runs git and gh against a repository working directory.
type Client struct {
	repoPath string
}

func New(repoPath string) *Client {
	return &Client{repoPath: repoPath}
}

func (c *Client) git(args ...string) (string, error) {
	fullArgs := append([]string{"-C", c.repoPath}, args...)
	out, err := exec.Command("git", fullArgs...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) gh(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	cmd.Dir = c.repoPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) CurrentBranch() (string, error) {
	return c.git("rev-parse", "--abbrev-ref", "HEAD")
}

func (c *Client) branchExists(branch string) (bool, error) {
	err := exec.Command("git", "-C", c.repoPath,
		"show-ref", "--verify", "--quiet", "refs/heads/"+branch).Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateOrCheckout switches to branch, creating it from the current HEAD
// when it does not exist yet. Calling it for an existing branch is a plain
// checkout, so resumed runs land on their original branch.
func (c *Client) CreateOrCheckout(branch string) error {
	exists, err := c.branchExists(branch)
	if err != nil {
		return fmt.Errorf("checking branch %s: %w", branch, err)
	}
	if exists {
		_, err = c.git("checkout", branch)
	} else {
		_, err = c.git("checkout", "-b", branch)
	}
	return err
}

// CommitAndPush stages everything, commits when there is something to
// commit, and pushes the branch upstream.
func (c *Client) CommitAndPush(branch, message string) error {
	if _, err := c.git("add", "-A"); err != nil {
		return err
	}
	status, err := c.git("status", "--porcelain")
	if err != nil {
		return err
	}
	if status != "" {
		if _, err := c.git("commit", "-m", message); err != nil {
			return err
		}
	}
	if _, err := c.git("push", "-u", "origin", branch); err != nil {
		return err
	}
	return nil
}

// ChangedFiles lists the paths that differ between base and HEAD.
func (c *Client) ChangedFiles(base string) ([]string, error) {
	out, err := c.git("diff", "--name-only", base+"...HEAD")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Diff renders the change for path as a unified diff. A tracked file is
// diffed against HEAD; a file new to the repository gets a synthetic
// new-file diff built from newContent.
func (c *Client) Diff(path, newContent string) (string, error) {
	tracked := exec.Command("git", "-C", c.repoPath,
		"ls-files", "--error-unmatch", path).Run() == nil
	if !tracked {
		return newFileDiff(path, newContent), nil
	}
	out, err := c.git("diff", "HEAD", "--", path)
	if err != nil {
		return "", err
	}
	return out, nil
}

// CreatePR opens a pull request for the current branch and returns its URL.
// A PR that already exists for the branch is treated as success and its URL
// is looked up instead.
func (c *Client) CreatePR(title, body string) (string, error) {
	out, err := c.gh("pr", "create", "--title", title, "--body", body)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return c.gh("pr", "view", "--json", "url", "--jq", ".url")
		}
		return "", err
	}
	// gh prints the PR URL as the last output line.
	lines := strings.Split(out, "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

func newFileDiff(path, content string) string {
	body := strings.TrimSuffix(content, "\n")
	var lines []string
	if body != "" {
		lines = strings.Split(body, "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	b.WriteString("new file mode 100644\n")
	b.WriteString("--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, l := range lines {
		b.WriteString("+" + l + "\n")
	}
	return b.String()
}
