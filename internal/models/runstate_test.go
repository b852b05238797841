package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkCompleted_GrowsOnce(t *testing.T) {
	state := &RunState{}

	state.MarkCompleted("a.py", "v1")
	state.MarkCompleted("b.py", "content b")
	state.MarkCompleted("a.py", "v2")

	assert.Equal(t, []string{"a.py", "b.py"}, state.CompletedFiles)
	assert.Equal(t, "v2", state.ContentCache["a.py"], "re-marking refreshes the cached content")
}

func TestRemainingFiles(t *testing.T) {
	state := &RunState{
		Plan: &Plan{
			GenerationOrder: []string{"a.py", "b.py", "c.py", "d.py"},
		},
		CompletedFiles: []string{"a.py", "b.py"},
	}

	assert.Equal(t, []string{"c.py", "d.py"}, state.RemainingFiles())

	state.MarkCompleted("c.py", "")
	state.MarkCompleted("d.py", "")
	assert.Empty(t, state.RemainingFiles())
}

func TestRemainingFiles_NoPlan(t *testing.T) {
	assert.Nil(t, (&RunState{}).RemainingFiles())
}
