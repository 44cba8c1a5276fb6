package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// StartRun records a new run in the running state
func (db *DB) StartRun(id string, targetCount int, probability float64, dryRun bool, scale float64, startedAt time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, status, target_count, probability, dry_run, scale, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, RunStatusRunning, targetCount, probability, dryRun, scale, startedAt)

	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters. A non-empty errorMessage marks the run aborted.
func (db *DB) FinishRun(id string, processed, committed, scrolls int, stopReason, errorMessage string, finishedAt time.Time) error {
	status := RunStatusCompleted
	var errMsg *string
	if errorMessage != "" {
		status = RunStatusAborted
		errMsg = &errorMessage
	}

	result, err := db.conn.Exec(`
		UPDATE runs
		SET status = ?,
		    processed = ?,
		    committed = ?,
		    scrolls = ?,
		    stop_reason = ?,
		    error_message = ?,
		    finished_at = ?
		WHERE id = ?
	`, status, processed, committed, scrolls, stopReason, errMsg, finishedAt, id)

	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// RecordUnstartedRun stores a run that finished without a start record,
// such as one that failed before measuring the display.
// Its settings are unknown and stored as zero.
func (db *DB) RecordUnstartedRun(id, stopReason, errorMessage string, finishedAt time.Time) error {
	status := RunStatusCompleted
	var errMsg *string
	if errorMessage != "" {
		status = RunStatusAborted
		errMsg = &errorMessage
	}

	_, err := db.conn.Exec(`
		INSERT INTO runs (id, status, target_count, probability, stop_reason, error_message, started_at, finished_at)
		VALUES (?, ?, 0, 0, ?, ?, ?, ?)
	`, id, status, stopReason, errMsg, finishedAt, finishedAt)

	if err != nil {
		return fmt.Errorf("failed to record unstarted run: %w", err)
	}
	return nil
}

// RecordDisposition appends one element decision to a run
func (db *DB) RecordDisposition(runID, disposition string, screenY, invariantY int, detail string, recordedAt time.Time) (int64, error) {
	var det *string
	if detail != "" {
		det = &detail
	}

	result, err := db.conn.Exec(`
		INSERT INTO dispositions (run_id, disposition, screen_y, invariant_y, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, disposition, screenY, invariantY, det, recordedAt)

	if err != nil {
		return 0, fmt.Errorf("failed to record disposition: %w", err)
	}
	return result.LastInsertId()
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, status, target_count, probability, dry_run, scale,
		       processed, committed, scrolls, stop_reason, error_message,
		       started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first
func (db *DB) RecentRuns(limit int) ([]*Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, status, target_count, probability, dry_run, scale,
		       processed, committed, scrolls, stop_reason, error_message,
		       started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Dispositions returns the decisions of a run in the order they were taken
func (db *DB) Dispositions(runID string) ([]*DispositionRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, disposition, screen_y, invariant_y, detail, recorded_at
		FROM dispositions
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispositions: %w", err)
	}
	defer rows.Close()

	var records []*DispositionRecord
	for rows.Next() {
		var rec DispositionRecord
		var detail sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Disposition, &rec.ScreenY,
			&rec.InvariantY, &detail, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disposition: %w", err)
		}
		if detail.Valid {
			rec.Detail = &detail.String
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DispositionCounts tallies a run's decisions by disposition
func (db *DB) DispositionCounts(runID string) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT disposition, COUNT(*)
		FROM dispositions
		WHERE run_id = ?
		GROUP BY disposition
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count dispositions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var stopReason, errorMessage sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Status,
		&run.TargetCount,
		&run.Probability,
		&run.DryRun,
		&run.Scale,
		&run.Processed,
		&run.Committed,
		&run.Scrolls,
		&stopReason,
		&errorMessage,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	if stopReason.Valid {
		run.StopReason = &stopReason.String
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	return &run, nil
}
