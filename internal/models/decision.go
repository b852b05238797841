package models

import (
	"encoding/json"
	"fmt"
)

// DecisionKind enumerates the actions a user can take through the approval
// channel.
type DecisionKind string

const (
	DecisionApprove       DecisionKind = "approve"
	DecisionReject        DecisionKind = "reject"
	DecisionFeedback      DecisionKind = "feedback"
	DecisionUserInput     DecisionKind = "user_input"
	DecisionResumeRun     DecisionKind = "resume_run"
	DecisionDeleteRun     DecisionKind = "delete_run"
	DecisionGenerateTask  DecisionKind = "generate_task"
	DecisionStartAnalysis DecisionKind = "start_analysis"
)

// Decision is a tagged union exchanged over the approval channel. Exactly
// the payload fields matching Kind are populated; everything else is zero.
type Decision struct {
	Kind DecisionKind `json:"kind"`

	// approve
	UseFastModel *bool    `json:"use_fast_model,omitempty"`
	ContextFiles []string `json:"context_files,omitempty"`

	// feedback / user_input / generate_task / start_analysis
	Text string `json:"text,omitempty"`

	// resume_run / delete_run
	RunID string `json:"run_id,omitempty"`
}

// decisionPayload is the loose JSON shape posted by the browser. It is
// validated here, at the channel boundary, rather than downstream.
type decisionPayload struct {
	UseFastModel *bool    `json:"use_fast_model"`
	ContextFiles []string `json:"context_files"`
	Feedback     string   `json:"feedback"`
	Answer       string   `json:"answer"`
	Task         string   `json:"task"`
	RunID        string   `json:"run_id"`
}

// ParseDecision validates a raw request body against the payload schema for
// the given kind and returns a typed Decision.
func ParseDecision(kind DecisionKind, body []byte) (*Decision, error) {
	var p decisionPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("invalid JSON payload for %s: %w", kind, err)
		}
	}

	d := &Decision{Kind: kind}
	switch kind {
	case DecisionApprove:
		d.UseFastModel = p.UseFastModel
		d.ContextFiles = p.ContextFiles
	case DecisionReject:
		// No payload.
	case DecisionFeedback:
		if p.Feedback == "" {
			return nil, fmt.Errorf("feedback decision requires non-empty feedback text")
		}
		d.Text = p.Feedback
	case DecisionUserInput:
		if p.Answer == "" {
			return nil, fmt.Errorf("user_input decision requires non-empty answer")
		}
		d.Text = p.Answer
	case DecisionGenerateTask, DecisionStartAnalysis:
		d.Text = p.Task
	case DecisionResumeRun, DecisionDeleteRun:
		if p.RunID == "" {
			return nil, fmt.Errorf("%s decision requires run_id", kind)
		}
		d.RunID = p.RunID
	default:
		return nil, fmt.Errorf("unknown decision kind: %s", kind)
	}
	return d, nil
}
