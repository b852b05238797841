package models

import (
	"fmt"
	"strings"
)

// NewFile describes a file the plan wants created, with the planner's
// rationale and optional structural suggestions for its contents.
type NewFile struct {
	Path               string   `json:"file_path"`
	Reasoning          string   `json:"reasoning"`
	ContentSuggestions []string `json:"content_suggestions,omitempty"`
}

// Plan is the structured output of a planning pass: which files to touch,
// in what order, and why. GenerationOrder is the authoritative execution
// order; FilesToEdit and FilesToCreate are reconciled against it before
// the plan is shown to the user.
type Plan struct {
	BranchName      string    `json:"branch_name"`
	Steps           []string  `json:"steps"`
	ContextFiles    []string  `json:"context_files"`
	FilesToEdit     []string  `json:"files_to_edit"`
	FilesToCreate   []NewFile `json:"files_to_create"`
	GenerationOrder []string  `json:"generation_order"`
	Reasoning       string    `json:"reasoning"`
	UseFastModel    bool      `json:"use_fast_model"`

	// ClarifyingQuestion is set instead of a populated plan when the
	// planner is blocked on missing task intent.
	ClarifyingQuestion string `json:"clarifying_question,omitempty"`
}

// CreatePaths returns the paths of all files the plan wants created.
func (p *Plan) CreatePaths() []string {
	paths := make([]string, len(p.FilesToCreate))
	for i, f := range p.FilesToCreate {
		paths[i] = f.Path
	}
	return paths
}

// PlannedFiles returns the union of FilesToEdit and the create paths as a set.
func (p *Plan) PlannedFiles() map[string]bool {
	set := make(map[string]bool, len(p.FilesToEdit)+len(p.FilesToCreate))
	for _, f := range p.FilesToEdit {
		set[f] = true
	}
	for _, f := range p.FilesToCreate {
		set[f.Path] = true
	}
	return set
}

// ValidateBranchName checks the plan's branch name against the naming
// policy: non-empty, prefixed, and git-safe.
func (p *Plan) ValidateBranchName(prefix string) error {
	name := p.BranchName
	if name == "" {
		return fmt.Errorf("plan has an empty branch name")
	}
	if prefix != "" && !strings.HasPrefix(name, prefix) {
		return fmt.Errorf("branch name %q missing required prefix %q", name, prefix)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") || strings.Contains(name, "..") {
		return fmt.Errorf("branch name %q is not a valid git ref", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("branch name %q contains invalid character %q", name, r)
		}
	}
	return nil
}
