// Package advisor is the advice agent: a single analysis pass over the
// repository that renders guidance for a task. It never touches files or git.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/davebot/dave/internal/llm"
	"github.com/davebot/dave/internal/orchestrator"
)

const maxAdviceTokens = 4096

type completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int64, fast bool) (string, error)
}

type Advisor struct {
	llm completer
	ws  orchestrator.Workspace
}

func New(client *llm.Client, ws orchestrator.Workspace) *Advisor {
	return &Advisor{llm: client, ws: ws}
}

const systemPrompt = `You are a senior engineer advising on a codebase. Given a question or task and the repository's file listing, give concrete, actionable advice: which files are involved, what approach to take, what to watch out for. Reference actual file paths from the listing. Answer in plain markdown.`

// Advise answers a question about the repository.
func (a *Advisor) Advise(ctx context.Context, task, appDescription string) (string, error) {
	files, err := a.ws.ListFiles()
	if err != nil {
		return "", fmt.Errorf("listing workspace files: %w", err)
	}

	advice, err := a.llm.Complete(ctx, systemPrompt, userPrompt(task, appDescription, files), maxAdviceTokens, false)
	if err != nil {
		return "", fmt.Errorf("advice request: %w", err)
	}
	return strings.TrimSpace(advice), nil
}

func userPrompt(task, appDescription string, files []string) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(task)
	sb.WriteString("\n")
	if appDescription != "" {
		sb.WriteString("\nApplication description:\n")
		sb.WriteString(appDescription)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRepository files:\n")
	sb.WriteString(strings.Join(files, "\n"))
	sb.WriteString("\n")
	return sb.String()
}
