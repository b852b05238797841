// Package generator produces the complete content of one file at a time,
// following an approved plan.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davebot/dave/internal/llm"
	"github.com/davebot/dave/internal/orchestrator"
)

const maxGenTokens = 16384

// Generator is the orchestrator's file-writing collaborator, backed by the
// LLM.
type Generator struct {
	llm *llm.Client
}

func New(client *llm.Client) *Generator {
	return &Generator{llm: client}
}

// genResponse is the JSON shape the model is asked for.
type genResponse struct {
	Content            string   `json:"content"`
	Summary            string   `json:"summary"`
	Reasoning          string   `json:"reasoning"`
	NeedsContext       bool     `json:"needs_context"`
	ContextRequest     string   `json:"context_request,omitempty"`
	FutureContextFiles []string `json:"future_context_files,omitempty"`
	QueueAdditions     []string `json:"queue_additions,omitempty"`
}

// Generate writes one file.
func (g *Generator) Generate(ctx context.Context, req orchestrator.GenRequest) (*orchestrator.GenResult, error) {
	text, err := g.llm.Complete(ctx, systemPrompt(req.Strict), userPrompt(req), maxGenTokens, req.FastModel)
	if err != nil {
		return nil, err
	}
	return parseGenResponse(text)
}

func parseGenResponse(text string) (*orchestrator.GenResult, error) {
	text = llm.StripFences(text)
	var resp genResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse generation response as JSON: %w\nraw response: %s", err, text)
	}
	if resp.NeedsContext {
		return &orchestrator.GenResult{
			NeedsContext:   true,
			ContextRequest: resp.ContextRequest,
		}, nil
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("generation response has neither content nor a context request")
	}
	return &orchestrator.GenResult{
		Content:            resp.Content,
		Summary:            resp.Summary,
		Reasoning:          resp.Reasoning,
		FutureContextFiles: resp.FutureContextFiles,
		QueueAdditions:     resp.QueueAdditions,
	}, nil
}

func systemPrompt(strict bool) string {
	var sb strings.Builder
	sb.WriteString(`You are the code-writing stage of an AI developer agent. You write ONE file per request. Return a single JSON object:

- "content": the complete new content of the file, top to bottom
- "summary": one sentence describing the change, for a progress feed
- "reasoning": brief explanation of the key decisions
- "future_context_files": existing files whose content you will need when writing the remaining files in the queue (optional)
- "queue_additions": files not yet planned that must also be written for this change to work (optional)

If you cannot write the file correctly because required information is missing from the provided context, return {"needs_context": true, "context_request": "what you need and why"} and nothing else.

Rules:
- content must be the entire file, never a fragment or a diff
- preserve parts of the original file the task does not touch
- Return valid JSON only, no markdown fencing or explanation`)

	if strict {
		sb.WriteString(`
- strict mode: no placeholder implementations, no TODO stubs, no omitted bodies; every function you write must be complete and working`)
	}
	return sb.String()
}

func userPrompt(req orchestrator.GenRequest) string {
	var sb strings.Builder
	sb.WriteString("Task: ")
	sb.WriteString(req.Task)
	sb.WriteString("\n\nFile to write: ")
	sb.WriteString(req.Path)
	sb.WriteString("\n")

	if req.OriginalContent != "" {
		sb.WriteString("\nCurrent content of the file:\n")
		sb.WriteString(req.OriginalContent)
		sb.WriteString("\n")
	} else {
		sb.WriteString("\nThis is a new file.\n")
	}

	if req.Context != "" {
		sb.WriteString("\nContext from related files:\n")
		sb.WriteString(req.Context)
	}

	if len(req.RemainingOrder) > 0 {
		sb.WriteString("\nFiles still queued after this one: ")
		sb.WriteString(strings.Join(req.RemainingOrder, ", "))
		sb.WriteString("\n")
	}
	if len(req.AllFiles) > 0 {
		sb.WriteString("\nRepository files:\n")
		sb.WriteString(strings.Join(req.AllFiles, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}
