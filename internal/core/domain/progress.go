package domain

import "time"

// Stage is one step of an orchestrator run.
type Stage string

const (
	StageConnecting Stage = "connecting"
	StageFetching   Stage = "fetching"
	StageProcessing Stage = "processing"
	StageSaving     Stage = "saving"
	StageComplete   Stage = "complete"
)

// ProgressEvent is emitted on the orchestrator's progress channel after each
// adapter call and after deduplication.
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	Stage   Stage     `json:"stage"`
	Network string    `json:"network"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message,omitempty"`
	Records int       `json:"records"`
	At      time.Time `json:"at"`
}
