package workspace

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextBuilder_LabeledBlocksSortedByPath(t *testing.T) {
	b := NewContextBuilder(0, nil)
	out, err := b.Build(map[string]string{
		"z.py": "last",
		"a.py": "first",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "--- Content of a.py ---\nfirst\n")
	assert.Contains(t, out, "--- Content of z.py ---\nlast\n")
	assert.Less(t, strings.Index(out, "a.py"), strings.Index(out, "z.py"))
}

func TestContextBuilder_SummarizesOverLimit(t *testing.T) {
	calls := 0
	b := NewContextBuilder(10, func(path, content string) (string, error) {
		calls++
		return "short form", nil
	})

	out, err := b.Build(map[string]string{
		"big.py":   strings.Repeat("x", 50),
		"small.py": "tiny",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Contains(t, out, "[summary of big.py]\nshort form")
	assert.NotContains(t, out, strings.Repeat("x", 50))
	assert.Contains(t, out, "--- Content of small.py ---\ntiny\n")
}

func TestContextBuilder_CachesByContentHash(t *testing.T) {
	calls := 0
	b := NewContextBuilder(10, func(path, content string) (string, error) {
		calls++
		return "condensed", nil
	})

	big := strings.Repeat("y", 50)
	for i := 0; i < 3; i++ {
		_, err := b.Build(map[string]string{"big.py": big})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	// Changed content misses the cache.
	_, err := b.Build(map[string]string{"big.py": big + "!"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestContextBuilder_TruncatesWithoutSummarizer(t *testing.T) {
	b := NewContextBuilder(5, nil)
	out, err := b.Build(map[string]string{"big.py": "0123456789"})
	require.NoError(t, err)
	assert.Contains(t, out, "01234\n[truncated]")
	assert.NotContains(t, out, "0123456789")
}

func TestContextBuilder_SummarizerErrorSurfaces(t *testing.T) {
	b := NewContextBuilder(5, func(path, content string) (string, error) {
		return "", fmt.Errorf("model unavailable")
	})
	_, err := b.Build(map[string]string{"big.py": "0123456789"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big.py")
}
