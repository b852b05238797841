package orchestrator

import (
	"context"

	"github.com/davebot/dave/internal/models"
)

// Workspace is the file surface of the target repository.
type Workspace interface {
	// ListFiles returns every tracked and untracked-but-not-ignored path,
	// deduplicated and sorted.
	ListFiles() ([]string, error)
	Read(path string) (string, error)
	// Write creates parent directories as needed.
	Write(path, content string) error
}

// VersionControl wraps the git and PR operations a run performs.
type VersionControl interface {
	CurrentBranch() (string, error)
	// CreateOrCheckout switches to branch, creating it if it does not exist.
	// Calling it again for an existing branch is a plain checkout.
	CreateOrCheckout(branch string) error
	CommitAndPush(branch, message string) error
	// Diff renders the change that writing newContent to path would make.
	Diff(path, newContent string) (string, error)
	// CreatePR opens a pull request for the current branch and returns its
	// URL. A PR that already exists for the branch is a success.
	CreatePR(title, body string) (string, error)
}

// GrepTool searches the repository for the planner's low-confidence queries.
type GrepTool interface {
	Grep(query string) (string, error)
}

// PlanRequest carries everything a planning pass can see.
type PlanRequest struct {
	Task           string
	Files          []string
	AppDescription string

	// Feedback and PreviousPlan are set on re-planning passes. A planner
	// given a previous plan must revise it rather than start over, and must
	// not request further repository searches.
	Feedback     string
	PreviousPlan *models.Plan

	// GrepResults maps each executed query to its output, accumulated
	// across planning attempts.
	GrepResults map[string]string
}

// PlanResult is exactly one of: a confident plan, a set of grep queries the
// planner wants run before committing to a plan, or a clarifying question
// for the user.
type PlanResult struct {
	Plan        *models.Plan
	GrepQueries []string
	Question    string
}

// Planner produces a plan for a task.
type Planner interface {
	Analyze(ctx context.Context, req PlanRequest) (*PlanResult, error)
}

// GenRequest carries everything a single-file generation pass can see.
type GenRequest struct {
	Task            string
	Context         string
	Path            string
	OriginalContent string
	RemainingOrder  []string
	AllFiles        []string
	Strict          bool
	FastModel       bool
}

// GenResult is the outcome of generating one file. When NeedsContext is set
// the generator refused to produce content; ContextRequest names what was
// missing.
type GenResult struct {
	Content   string
	Summary   string
	Reasoning string

	NeedsContext   bool
	ContextRequest string

	// FutureContextFiles are paths the generator wants loaded into context
	// for the files still in the queue. QueueAdditions are new paths to
	// append to the generation order.
	FutureContextFiles []string
	QueueAdditions     []string
}

// Generator produces the full content of one file.
type Generator interface {
	Generate(ctx context.Context, req GenRequest) (*GenResult, error)
}
