package models

import "time"

// RunState is the durable snapshot of an in-progress generation run. It is
// persisted after every successful file generation so a crashed or
// interrupted run can be resumed from where it stopped.
type RunState struct {
	ID             string            `json:"id"`
	Task           string            `json:"task"`
	OriginalBranch string            `json:"original_branch"`
	Plan           *Plan             `json:"plan,omitempty"`
	CompletedFiles []string          `json:"completed_files"`
	ContentCache   map[string]string `json:"content_cache"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// RunSummary is the listing view of a persisted run.
type RunSummary struct {
	ID             string
	Task           string
	BranchName     string
	CompletedCount int
	PlannedCount   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MarkCompleted appends path to CompletedFiles if not already present and
// caches its generated content. CompletedFiles only ever grows.
func (r *RunState) MarkCompleted(path, content string) {
	for _, f := range r.CompletedFiles {
		if f == path {
			r.cacheContent(path, content)
			return
		}
	}
	r.CompletedFiles = append(r.CompletedFiles, path)
	r.cacheContent(path, content)
}

func (r *RunState) cacheContent(path, content string) {
	if r.ContentCache == nil {
		r.ContentCache = make(map[string]string)
	}
	r.ContentCache[path] = content
}

// RemainingFiles returns the plan's generation order minus the files already
// completed, preserving order. This is the resume work queue seed.
func (r *RunState) RemainingFiles() []string {
	if r.Plan == nil {
		return nil
	}
	done := make(map[string]bool, len(r.CompletedFiles))
	for _, f := range r.CompletedFiles {
		done[f] = true
	}
	var remaining []string
	for _, f := range r.Plan.GenerationOrder {
		if !done[f] {
			remaining = append(remaining, f)
		}
	}
	return remaining
}
