package models

// EventStatus enumerates the status feed entries published to the UI.
type EventStatus string

const (
	EventPlanning    EventStatus = "planning"
	EventToolUsed    EventStatus = "tool"
	EventPlanReady   EventStatus = "plan_ready"
	EventPlanUpdated EventStatus = "plan_updated"
	EventQuestion    EventStatus = "question"
	EventWriting     EventStatus = "writing"
	EventFileDone    EventStatus = "done"
	EventFinished    EventStatus = "finished"
	EventRejected    EventStatus = "rejected"
	EventError       EventStatus = "error"
)

// Event is one entry on the outbound status feed. The orchestrator is the
// only producer; the UI's long-poll is the only consumer.
type Event struct {
	Status    EventStatus `json:"status"`
	FilePath  string      `json:"file_path,omitempty"`
	Message   string      `json:"message,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	Reasoning string      `json:"reasoning,omitempty"`
	Diff      string      `json:"diff,omitempty"`
	DiffStat  string      `json:"diff_stat,omitempty"`
	Queue     []string    `json:"queue,omitempty"`
	Plan      *Plan       `json:"plan,omitempty"`
}
