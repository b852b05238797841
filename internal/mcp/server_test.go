package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebot/dave/internal/models"
	"github.com/davebot/dave/internal/runstore"
)

// mockStore implements runstore.Store for testing.
type mockStore struct {
	runs    map[string]*models.RunState
	listErr error
}

func newMockStore() *mockStore {
	return &mockStore{runs: map[string]*models.RunState{}}
}

func (m *mockStore) Save(_ context.Context, state *models.RunState) error {
	m.runs[state.ID] = state
	return nil
}

func (m *mockStore) Load(_ context.Context, id string) (*models.RunState, error) {
	state, ok := m.runs[id]
	if !ok {
		return nil, runstore.ErrNotFound
	}
	return state, nil
}

func (m *mockStore) List(context.Context) ([]*models.RunSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.RunSummary
	for _, r := range m.runs {
		summary := &models.RunSummary{
			ID:             r.ID,
			Task:           r.Task,
			CompletedCount: len(r.CompletedFiles),
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		}
		if r.Plan != nil {
			summary.BranchName = r.Plan.BranchName
			summary.PlannedCount = len(r.Plan.GenerationOrder)
		}
		out = append(out, summary)
	}
	return out, nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	if _, ok := m.runs[id]; !ok {
		return runstore.ErrNotFound
	}
	delete(m.runs, id)
	return nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func seedRun(ms *mockStore, id, task string) *models.RunState {
	state := &models.RunState{
		ID:   id,
		Task: task,
		Plan: &models.Plan{
			BranchName:      "dave-bot/feat/" + id,
			GenerationOrder: []string{"a.py", "b.py"},
		},
		CompletedFiles: []string{"a.py"},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	ms.runs[id] = state
	return state
}

func callToolReq(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{Arguments: args},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestMCPServer_Registers(t *testing.T) {
	srv := NewServer(newMockStore())
	require.NotNil(t, srv.MCPServer())
}

func TestHandleListRuns(t *testing.T) {
	ms := newMockStore()
	seedRun(ms, "01RUNA", "add health endpoint")
	srv := NewServer(ms)

	result, err := srv.handleListRuns(context.Background(), callToolReq(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "01RUNA", out[0]["id"])
	assert.Equal(t, "add health endpoint", out[0]["task"])
	assert.Equal(t, float64(1), out[0]["completed_files"])
	assert.Equal(t, float64(2), out[0]["planned_files"])
}

func TestHandleListRuns_StoreError(t *testing.T) {
	ms := newMockStore()
	ms.listErr = assert.AnError
	srv := NewServer(ms)

	result, err := srv.handleListRuns(context.Background(), callToolReq(nil))
	require.NoError(t, err, "handler should wrap failures in the result")
	assert.True(t, result.IsError)
}

func TestHandleShowRun(t *testing.T) {
	ms := newMockStore()
	seedRun(ms, "01RUNB", "refactor auth")
	srv := NewServer(ms)

	result, err := srv.handleShowRun(context.Background(), callToolReq(map[string]any{"run_id": "01RUNB"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "refactor auth")
	assert.Contains(t, text, "dave-bot/feat/01RUNB")
	// Remaining queue is derived, not stored.
	assert.Contains(t, text, `"remaining_files":["b.py"]`)
}

func TestHandleShowRun_NotFound(t *testing.T) {
	srv := NewServer(newMockStore())
	result, err := srv.handleShowRun(context.Background(), callToolReq(map[string]any{"run_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "run not found")
}

func TestHandleShowRun_MissingArg(t *testing.T) {
	srv := NewServer(newMockStore())
	result, err := srv.handleShowRun(context.Background(), callToolReq(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleDeleteRun(t *testing.T) {
	ms := newMockStore()
	seedRun(ms, "01RUNC", "cleanup")
	srv := NewServer(ms)

	result, err := srv.handleDeleteRun(context.Background(), callToolReq(map[string]any{"run_id": "01RUNC"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Empty(t, ms.runs)

	// Deleting again reports not found.
	result, err = srv.handleDeleteRun(context.Background(), callToolReq(map[string]any{"run_id": "01RUNC"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
