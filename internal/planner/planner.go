// Package planner turns a task into a structured plan: which files to touch,
// in what order, on which branch.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/davebot/dave/internal/llm"
	"github.com/davebot/dave/internal/models"
	"github.com/davebot/dave/internal/orchestrator"
)

const maxPlanTokens = 8192

// Planner is the orchestrator's planning collaborator, backed by the LLM.
type Planner struct {
	llm          *llm.Client
	branchPrefix string
}

func New(client *llm.Client, branchPrefix string) *Planner {
	return &Planner{llm: client, branchPrefix: branchPrefix}
}

// planResponse is the JSON shape the model is asked for. Exactly one of the
// plan fields, grep_queries, or clarifying_question should be populated.
type planResponse struct {
	models.Plan
	GrepQueries []string `json:"grep_queries,omitempty"`
}

// Analyze runs one planning pass over the task.
func (p *Planner) Analyze(ctx context.Context, req orchestrator.PlanRequest) (*orchestrator.PlanResult, error) {
	text, err := p.llm.Complete(ctx, p.systemPrompt(req), userPrompt(req), maxPlanTokens, false)
	if err != nil {
		return nil, err
	}
	return parsePlanResponse(text)
}

func parsePlanResponse(text string) (*orchestrator.PlanResult, error) {
	text = llm.StripFences(text)
	var resp planResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse plan response as JSON: %w\nraw response: %s", err, text)
	}

	if len(resp.GrepQueries) > 0 {
		return &orchestrator.PlanResult{GrepQueries: resp.GrepQueries}, nil
	}
	if resp.ClarifyingQuestion != "" {
		return &orchestrator.PlanResult{Question: resp.ClarifyingQuestion}, nil
	}
	plan := resp.Plan
	return &orchestrator.PlanResult{Plan: &plan}, nil
}

func (p *Planner) systemPrompt(req orchestrator.PlanRequest) string {
	var sb strings.Builder
	sb.WriteString(`You are the planning stage of an AI developer agent working on a git repository. Given a task and the repository's file list, produce a plan as a single JSON object with these fields:

- "branch_name": branch for the change, prefixed with "` + p.branchPrefix + `", lowercase, slash-and-dash separated
- "steps": short human-readable steps of the plan
- "context_files": existing files whose content is needed as reference but will not be changed
- "files_to_edit": existing files that will be modified
- "files_to_create": array of {"file_path", "reasoning", "content_suggestions"} for new files
- "generation_order": every file from files_to_edit and files_to_create, ordered so that each file's dependencies come before it; this is the authoritative execution order
- "reasoning": why this plan solves the task
- "use_fast_model": true only when every change is mechanical and low-risk

If you cannot plan confidently without seeing how something is used in the code, instead return {"grep_queries": [...]} with up to 3 search patterns, and nothing else.
If the task itself is ambiguous, instead return {"clarifying_question": "..."} with one question for the user, and nothing else.

Rules:
- Never invent files in context_files or files_to_edit that are absent from the repository listing
- generation_order must contain exactly the union of files_to_edit and files_to_create paths
- Return valid JSON only, no markdown fencing or explanation`)

	if req.PreviousPlan != nil {
		sb.WriteString("\n\nYou are revising an earlier plan based on user feedback. Keep what the feedback does not question. Do not return grep_queries in a revision.")
	}
	return sb.String()
}

func userPrompt(req orchestrator.PlanRequest) string {
	var sb strings.Builder
	sb.WriteString("Task: ")
	sb.WriteString(req.Task)
	sb.WriteString("\n")

	if req.AppDescription != "" {
		sb.WriteString("\nApplication description:\n")
		sb.WriteString(req.AppDescription)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRepository files:\n")
	for _, f := range req.Files {
		sb.WriteString(f)
		sb.WriteString("\n")
	}

	if len(req.GrepResults) > 0 {
		queries := make([]string, 0, len(req.GrepResults))
		for q := range req.GrepResults {
			queries = append(queries, q)
		}
		sort.Strings(queries)
		sb.WriteString("\nSearch results from your earlier queries:\n")
		for _, query := range queries {
			fmt.Fprintf(&sb, "--- results for %q ---\n%s\n", query, req.GrepResults[query])
		}
	}

	if req.PreviousPlan != nil {
		prev, _ := json.Marshal(req.PreviousPlan)
		sb.WriteString("\nPrevious plan:\n")
		sb.Write(prev)
		sb.WriteString("\n")
	}
	if req.Feedback != "" {
		sb.WriteString("\nUser feedback:\n")
		sb.WriteString(req.Feedback)
		sb.WriteString("\n")
	}
	return sb.String()
}
