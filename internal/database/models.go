package database

import (
	"time"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
)

// Run is one journaled run
type Run struct {
	ID     string `db:"id"`
	Status string `db:"status"`

	// Settings
	TargetCount int     `db:"target_count"`
	Probability float64 `db:"probability"`
	DryRun      bool    `db:"dry_run"`
	Scale       float64 `db:"scale"`

	// Progress
	Processed    int     `db:"processed"`
	Committed    int     `db:"committed"`
	Scrolls      int     `db:"scrolls"`
	StopReason   *string `db:"stop_reason"`
	ErrorMessage *string `db:"error_message"`

	// Timestamps
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// Duration returns the run length, or zero while it is still running
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DispositionRecord is the decision taken for one feed element
type DispositionRecord struct {
	ID          int64     `db:"id"`
	RunID       string    `db:"run_id"`
	Disposition string    `db:"disposition"`
	ScreenY     int       `db:"screen_y"`
	InvariantY  int       `db:"invariant_y"`
	Detail      *string   `db:"detail"`
	RecordedAt  time.Time `db:"recorded_at"`
}

// ErrorLog is an error reported during a run
type ErrorLog struct {
	ID           int64     `db:"id"`
	RunID        *string   `db:"run_id"`
	Source       string    `db:"source"`
	ErrorMessage string    `db:"error_message"`
	OccurredAt   time.Time `db:"occurred_at"`
}
