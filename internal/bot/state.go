package bot

import (
	"time"

	"jordanella.com/feed-liker/internal/feed"
)

// Disposition is the terminal decision taken for one detected element
type Disposition string

const (
	DispositionSkippedDuplicate     Disposition = "skipped-duplicate"
	DispositionSkippedActedMarker   Disposition = "skipped-acted-marker"
	DispositionSkippedProbabilistic Disposition = "skipped-probabilistic"
	DispositionAlreadyActed         Disposition = "already-acted"
	DispositionCommitted            Disposition = "committed"
	DispositionSimulated            Disposition = "simulated"
	DispositionFailed               Disposition = "failed"
)

// Stop reasons reported in the summary
const (
	StopTargetReached = "target reached"
	StopScrollCeiling = "scroll ceiling reached"
	StopCancelled     = "cancelled"
	StopError         = "error"
)

// State is the run's mutable progress. Only the run loop writes it.
type State struct {
	Processed    int // Fresh elements that passed the filters
	Committed    int // Actions clicked, or simulated in dry-run
	AlreadyActed int // Menus that showed the undo action
	Failed       int // Engagements that could not commit
	Scrolls      int

	ScanState *feed.ScanState
}

// Summary is produced at the end of every run, including aborted ones
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Scale      float64

	Processed    int
	Committed    int
	AlreadyActed int
	Failed       int
	Scrolls      int
	Handled      int // Entries in the scan state

	StopReason string
}

// Duration returns how long the run took
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
