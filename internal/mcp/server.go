// Package mcp exposes run inspection as MCP tools over stdio, so other
// agents and editors can look at persisted runs.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/davebot/dave/internal/runstore"
)

// Server wraps the run store and exposes it as MCP tools.
type Server struct {
	store runstore.Store
}

func NewServer(store runstore.Store) *Server {
	return &Server{store: store}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("dave", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listRunsTool())
	srv.AddTool(s.showRunTool())
	srv.AddTool(s.deleteRunTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// dave_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dave_list_runs",
		mcp.WithDescription("List persisted generation runs. Returns a JSON array with id, task, branch, progress, and timestamps, most recent first."),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	type runOut struct {
		ID        string `json:"id"`
		Task      string `json:"task"`
		Branch    string `json:"branch"`
		Completed int    `json:"completed_files"`
		Planned   int    `json:"planned_files"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}

	out := make([]runOut, len(summaries))
	for i, r := range summaries {
		out[i] = runOut{
			ID:        r.ID,
			Task:      r.Task,
			Branch:    r.BranchName,
			Completed: r.CompletedCount,
			Planned:   r.PlannedCount,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05"),
			UpdatedAt: r.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// dave_show_run
func (s *Server) showRunTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dave_show_run",
		mcp.WithDescription("Show one persisted run in full: its plan, completed files, and remaining queue."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID as shown by dave_list_runs")),
	)
	return tool, s.handleShowRun
}

func (s *Server) handleShowRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: run_id"), nil
	}

	state, err := s.store.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load run: %v", err)), nil
	}

	out := map[string]any{
		"id":              state.ID,
		"task":            state.Task,
		"original_branch": state.OriginalBranch,
		"plan":            state.Plan,
		"completed_files": state.CompletedFiles,
		"remaining_files": state.RemainingFiles(),
		"created_at":      state.CreatedAt,
		"updated_at":      state.UpdatedAt,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal run: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// dave_delete_run
func (s *Server) deleteRunTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dave_delete_run",
		mcp.WithDescription("Delete a persisted run snapshot. The git branch, if any, is left alone."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID as shown by dave_list_runs")),
	)
	return tool, s.handleDeleteRun
}

func (s *Server) handleDeleteRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: run_id"), nil
	}

	if err := s.store.Delete(ctx, runID); err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete run: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted run %s", runID)), nil
}
