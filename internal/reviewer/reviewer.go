// Package reviewer runs the code-review agent: an analysis pass selects the
// files worth reviewing and their supporting context, then each file is
// reviewed in turn. A review that stalls on missing context triggers a
// bounded re-analysis with the request folded in, unlike the generation
// loop, which stops the run instead.
package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/davebot/dave/internal/llm"
	"github.com/davebot/dave/internal/orchestrator"
)

const (
	maxGrepRounds       = 3
	maxReanalysisRounds = 3
	maxReviewTokens     = 8192
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Comment is one finding anchored to a line of the reviewed file.
type Comment struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// FileReview is the result of reviewing one file.
type FileReview struct {
	Path     string    `json:"path"`
	Comments []Comment `json:"comments"`
	Feedback string    `json:"feedback"`
}

// Review is the complete output of a review run.
type Review struct {
	Files   []FileReview `json:"files"`
	General string       `json:"general"`
}

type completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int64, fast bool) (string, error)
}

// Reviewer drives the review agent.
type Reviewer struct {
	llm    completer
	ws     orchestrator.Workspace
	grep   orchestrator.GrepTool
	logger *slog.Logger
}

func New(client *llm.Client, ws orchestrator.Workspace, grep orchestrator.GrepTool, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{llm: client, ws: ws, grep: grep, logger: logger}
}

// analysisResponse is the JSON shape of the analysis pass. A low-confidence
// model returns grep_queries instead of a file selection.
type analysisResponse struct {
	FilesToReview []string `json:"files_to_review"`
	ContextFiles  []string `json:"context_files"`
	GrepQueries   []string `json:"grep_queries,omitempty"`
}

// reviewResponse is the JSON shape of a per-file review.
type reviewResponse struct {
	Comments       []Comment `json:"comments"`
	Feedback       string    `json:"feedback"`
	NeedsContext   bool      `json:"needs_context"`
	ContextRequest string    `json:"context_request,omitempty"`
}

// Run reviews candidates (or, when empty, lets the analysis pass choose from
// the whole repository) against the task.
func (r *Reviewer) Run(ctx context.Context, task string, candidates []string) (*Review, error) {
	files, err := r.ws.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("listing workspace files: %w", err)
	}

	analysis, err := r.analyze(ctx, task, files, candidates, "")
	if err != nil {
		return nil, err
	}

	review := &Review{}
	for _, path := range analysis.FilesToReview {
		fileReview, err := r.reviewFile(ctx, task, files, candidates, analysis, path)
		if err != nil {
			return nil, err
		}
		review.Files = append(review.Files, *fileReview)
	}
	review.General = generalSummary(review.Files)
	return review, nil
}

// analyze selects the files to review and their context, running up to
// maxGrepRounds search-augmented retries. extraContext carries a stalled
// review's context request back into the analysis.
func (r *Reviewer) analyze(ctx context.Context, task string, files, candidates []string, extraContext string) (*analysisResponse, error) {
	grepResults := make(map[string]string)

	for round := 1; ; round++ {
		text, err := r.llm.Complete(ctx,
			analysisSystemPrompt,
			analysisUserPrompt(task, files, candidates, grepResults, extraContext),
			maxReviewTokens, false)
		if err != nil {
			return nil, fmt.Errorf("review analysis: %w", err)
		}

		analysis, err := parseAnalysisResponse(text)
		if err != nil {
			return nil, err
		}
		if len(analysis.GrepQueries) == 0 {
			return analysis, nil
		}
		if round > maxGrepRounds {
			return nil, fmt.Errorf("review analysis did not converge after %d search rounds", maxGrepRounds)
		}
		for _, q := range analysis.GrepQueries {
			out, err := r.grep.Grep(q)
			if err != nil {
				out = fmt.Sprintf("search failed: %v", err)
			}
			grepResults[q] = out
		}
		r.logger.Info("review analysis searching", "round", round, "queries", analysis.GrepQueries)
	}
}

// reviewFile reviews one file, re-running the analysis when the review
// stalls on missing context, up to maxReanalysisRounds times.
func (r *Reviewer) reviewFile(ctx context.Context, task string, files, candidates []string, analysis *analysisResponse, path string) (*FileReview, error) {
	for round := 0; ; round++ {
		content, err := r.ws.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s for review: %w", path, err)
		}
		contextBlock := r.loadContext(analysis.ContextFiles, path)

		text, err := r.llm.Complete(ctx,
			reviewSystemPrompt,
			reviewUserPrompt(task, path, content, contextBlock),
			maxReviewTokens, false)
		if err != nil {
			return nil, fmt.Errorf("reviewing %s: %w", path, err)
		}
		resp, err := parseReviewResponse(text)
		if err != nil {
			return nil, err
		}

		if !resp.NeedsContext {
			return &FileReview{Path: path, Comments: resp.Comments, Feedback: resp.Feedback}, nil
		}
		if round >= maxReanalysisRounds {
			return nil, fmt.Errorf("review of %s still blocked after %d re-analysis rounds: %s",
				path, maxReanalysisRounds, resp.ContextRequest)
		}

		r.logger.Info("review needs more context, re-analyzing",
			"path", path, "request", resp.ContextRequest)
		analysis, err = r.analyze(ctx, task, files, candidates, resp.ContextRequest)
		if err != nil {
			return nil, err
		}
	}
}

func (r *Reviewer) loadContext(contextFiles []string, exclude string) string {
	var sb strings.Builder
	for _, f := range contextFiles {
		if f == exclude {
			continue
		}
		content, err := r.ws.Read(f)
		if err != nil {
			r.logger.Warn("context file unavailable", "path", f, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "--- Content of %s ---\n%s\n\n", f, content)
	}
	return sb.String()
}

func parseAnalysisResponse(text string) (*analysisResponse, error) {
	text = llm.StripFences(text)
	var resp analysisResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse review analysis as JSON: %w\nraw response: %s", err, text)
	}
	return &resp, nil
}

func parseReviewResponse(text string) (*reviewResponse, error) {
	text = llm.StripFences(text)
	var resp reviewResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("parse file review as JSON: %w\nraw response: %s", err, text)
	}
	for i, c := range resp.Comments {
		switch c.Severity {
		case SeverityInfo, SeverityWarning, SeverityCritical:
		case "":
			resp.Comments[i].Severity = SeverityInfo
		default:
			return nil, fmt.Errorf("unknown review severity %q", c.Severity)
		}
	}
	return &resp, nil
}

func generalSummary(files []FileReview) string {
	var critical, warning, info int
	for _, f := range files {
		for _, c := range f.Comments {
			switch c.Severity {
			case SeverityCritical:
				critical++
			case SeverityWarning:
				warning++
			default:
				info++
			}
		}
	}
	return fmt.Sprintf("%d files reviewed: %d critical, %d warnings, %d notes",
		len(files), critical, warning, info)
}

const analysisSystemPrompt = `You are the analysis stage of a code-review agent. Given a task description and the repository's files, select what to review. Return a JSON object:

- "files_to_review": the files whose changes or contents the review should cover
- "context_files": files needed as reference while reviewing

If you cannot select confidently without seeing how something is used, instead return {"grep_queries": [...]} with up to 3 search patterns, and nothing else.

Rules:
- Only name files present in the repository listing
- Return valid JSON only, no markdown fencing or explanation`

func analysisUserPrompt(task string, files, candidates []string, grepResults map[string]string, extraContext string) string {
	var sb strings.Builder
	sb.WriteString("Review task: ")
	sb.WriteString(task)
	sb.WriteString("\n")

	if len(candidates) > 0 {
		sb.WriteString("\nChanged files (review should focus on these):\n")
		sb.WriteString(strings.Join(candidates, "\n"))
		sb.WriteString("\n")
	}
	sb.WriteString("\nRepository files:\n")
	sb.WriteString(strings.Join(files, "\n"))
	sb.WriteString("\n")

	for query, out := range grepResults {
		fmt.Fprintf(&sb, "\n--- results for %q ---\n%s\n", query, out)
	}
	if extraContext != "" {
		sb.WriteString("\nA previous review attempt was blocked and asked for: ")
		sb.WriteString(extraContext)
		sb.WriteString("\nInclude context files that satisfy this request.\n")
	}
	return sb.String()
}

const reviewSystemPrompt = `You are a code reviewer. Review ONE file against the stated task. Return a JSON object:

- "comments": array of {"line": <1-based line number>, "severity": "info"|"warning"|"critical", "text": "..."}
- "feedback": overall assessment of the file in a few sentences

If you cannot review meaningfully because required information is missing from the provided context, return {"needs_context": true, "context_request": "what you need and why"} and nothing else.

Rules:
- critical is for bugs and correctness problems, warning for risks and smells, info for style and suggestions
- Return valid JSON only, no markdown fencing or explanation`

func reviewUserPrompt(task, path, content, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString("Review task: ")
	sb.WriteString(task)
	sb.WriteString("\n\nFile under review: ")
	sb.WriteString(path)
	sb.WriteString("\n\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	if contextBlock != "" {
		sb.WriteString("\nReference context:\n")
		sb.WriteString(contextBlock)
	}
	return sb.String()
}
