package model

import (
	"time"
)

// RunStatus represents the terminal or in-flight state of one institution run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusNoData   RunStatus = "no_data"
	RunStatusNotFound RunStatus = "not_found"
	RunStatusFailed   RunStatus = "failed"
)

// Finished reports whether the run reached a terminal state that a resumed
// batch may skip.
func (s RunStatus) Finished() bool {
	switch s {
	case RunStatusComplete, RunStatusNoData, RunStatusNotFound:
		return true
	default:
		return false
	}
}

// Run is the ledger record for one institution processed by one task.
type Run struct {
	ID          string    `json:"id"`
	Task        string    `json:"task"`
	Institution string    `json:"institution"`
	Status      RunStatus `json:"status"`
	Rows        int       `json:"rows"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunOutcome is what the pipeline reports when a run finishes.
type RunOutcome struct {
	Status   RunStatus
	Rows     int
	Attempts int
	Error    string
}

// Attempt records one full pipeline pass for an institution.
type Attempt struct {
	Number       int     `json:"number"`
	Stage        string  `json:"stage"`
	Fault        string  `json:"fault,omitempty"`
	Error        string  `json:"error,omitempty"`
	MatchedName  string  `json:"matched_name,omitempty"`
	MatchScore   float64 `json:"match_score,omitempty"`
	Strategy     string  `json:"strategy,omitempty"`
	Policy       string  `json:"policy,omitempty"`
	Records      int     `json:"records"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	DurationMs   int64   `json:"duration_ms"`
}

// Succeeded reports whether the attempt produced an outcome without a fault.
func (a Attempt) Succeeded() bool {
	return a.Fault == ""
}
