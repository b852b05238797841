// Package workspace is the file surface of the target repository: listing,
// reading, writing, and searching the files an agent run operates on.
package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Dir is a repository working directory rooted at a fixed path.
type Dir struct {
	root string
}

func New(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Root() string { return d.root }

// ListFiles returns every tracked path plus every untracked path that is not
// ignored, deduplicated and sorted.
func (d *Dir) ListFiles() ([]string, error) {
	tracked, err := d.git("ls-files")
	if err != nil {
		return nil, err
	}
	untracked, err := d.git("ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, line := range strings.Split(tracked+"\n"+untracked, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			set[line] = true
		}
	}
	files := make([]string, 0, len(set))
	for f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func (d *Dir) Read(path string) (string, error) {
	b, err := os.ReadFile(filepath.Join(d.root, path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// Write creates parent directories as needed.
func (d *Dir) Write(path, content string) error {
	full := filepath.Join(d.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent dirs for %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Grep searches tracked content. A query with no matches returns an empty
// result, not an error.
func (d *Dir) Grep(query string) (string, error) {
	out, err := exec.Command("git", "-C", d.root, "grep", "-n", "-e", query).CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git grep %q: %s", query, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (d *Dir) git(args ...string) (string, error) {
	fullArgs := append([]string{"-C", d.root}, args...)
	out, err := exec.Command("git", fullArgs...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
