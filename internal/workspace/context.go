package workspace

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultContextLimit is the per-file character budget before a file's
// content is summarized instead of included verbatim.
const DefaultContextLimit = 200_000

// Summarizer condenses file content that exceeds the context budget.
type Summarizer func(path, content string) (string, error)

// ContextBuilder assembles prompt context from file contents. Oversized
// entries are summarized, with summaries cached by content hash so an
// unchanged file is only summarized once per process.
type ContextBuilder struct {
	limit     int
	summarize Summarizer

	mu    sync.Mutex
	cache map[string]string
}

func NewContextBuilder(limit int, summarize Summarizer) *ContextBuilder {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	return &ContextBuilder{
		limit:     limit,
		summarize: summarize,
		cache:     make(map[string]string),
	}
}

// Build renders each file as a labeled block, sorted by path so the same
// inputs always produce the same prompt.
func (b *ContextBuilder) Build(contents map[string]string) (string, error) {
	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, path := range paths {
		content := contents[path]
		if len(content) > b.limit {
			condensed, err := b.condense(path, content)
			if err != nil {
				return "", fmt.Errorf("summarizing %s: %w", path, err)
			}
			content = condensed
		}
		fmt.Fprintf(&sb, "--- Content of %s ---\n%s\n\n", path, content)
	}
	return sb.String(), nil
}

func (b *ContextBuilder) condense(path, content string) (string, error) {
	if b.summarize == nil {
		return content[:b.limit] + "\n[truncated]", nil
	}

	key := fmt.Sprintf("%x", md5.Sum([]byte(content)))
	b.mu.Lock()
	cached, ok := b.cache[key]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	summary, err := b.summarize(path, content)
	if err != nil {
		return "", err
	}
	summary = fmt.Sprintf("[summary of %s]\n%s", path, summary)

	b.mu.Lock()
	b.cache[key] = summary
	b.mu.Unlock()
	return summary, nil
}
