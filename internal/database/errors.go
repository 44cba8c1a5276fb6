package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Error logging operations

// LogError creates a new error log entry. runID may be empty for errors outside a run.
func (db *DB) LogError(runID, source, errorMessage string, occurredAt time.Time) (int64, error) {
	var id *string
	if runID != "" {
		id = &runID
	}

	var errorID int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO error_log (run_id, source, error_message, occurred_at)
			VALUES (?, ?, ?, ?)
		`, id, source, errorMessage, occurredAt)

		if err != nil {
			return fmt.Errorf("failed to insert error log: %w", err)
		}

		errorID, err = result.LastInsertId()
		return err
	})

	if err != nil {
		return 0, err
	}

	return errorID, nil
}

// GetRecentErrors retrieves recent errors across all runs
func (db *DB) GetRecentErrors(limit int) ([]*ErrorLog, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, source, error_message, occurred_at
		FROM error_log
		ORDER BY occurred_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var errs []*ErrorLog
	for rows.Next() {
		var e ErrorLog
		var runID sql.NullString
		if err := rows.Scan(&e.ID, &runID, &e.Source, &e.ErrorMessage, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		if runID.Valid {
			e.RunID = &runID.String
		}
		errs = append(errs, &e)
	}

	return errs, rows.Err()
}
