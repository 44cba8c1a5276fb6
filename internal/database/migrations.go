package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

// migrations is the ordered list of all database migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up:          migration001Up,
	},
	{
		Version:     2,
		Description: "Create runs table",
		Up:          migration002Up,
	},
	{
		Version:     3,
		Description: "Create dispositions table",
		Up:          migration003Up,
	},
	{
		Version:     4,
		Description: "Create error_log table",
		Up:          migration004Up,
	},
}

// LatestVersion is the schema version after all migrations have run
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations runs all pending database migrations
func (db *DB) RunMigrations() error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := db.ExecTx(func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			// Record migration
			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, migration.Version, migration.Description, time.Now())

			return err
		})

		if err != nil {
			return err
		}
	}

	return nil
}

// getCurrentVersion returns the current schema version
func (db *DB) getCurrentVersion() (int, error) {
	// Check if schema_version table exists
	var tableExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)

	if err != nil {
		return 0, err
	}

	if !tableExists {
		return 0, nil
	}

	var version int
	err = db.conn.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)

	if err != nil {
		return 0, err
	}

	return version, nil
}

// Migration 001: Schema version tracking table
func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

// Migration 002: One row per run
func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'running',

			-- Settings
			target_count INTEGER NOT NULL,
			probability REAL NOT NULL,
			dry_run BOOLEAN NOT NULL DEFAULT 0,
			scale REAL NOT NULL DEFAULT 1,

			-- Progress
			processed INTEGER DEFAULT 0,
			committed INTEGER DEFAULT 0,
			scrolls INTEGER DEFAULT 0,
			stop_reason TEXT,
			error_message TEXT,

			-- Timestamps
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		);

		CREATE INDEX idx_runs_started_at ON runs(started_at);
	`)
	return err
}

// Migration 003: Element dispositions
func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE dispositions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			disposition TEXT NOT NULL,
			screen_y INTEGER NOT NULL,
			invariant_y INTEGER NOT NULL,
			detail TEXT,
			recorded_at DATETIME NOT NULL
		);

		CREATE INDEX idx_dispositions_run ON dispositions(run_id);
	`)
	return err
}

// Migration 004: Error log
func migration004Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE error_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			source TEXT NOT NULL,
			error_message TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		);

		CREATE INDEX idx_error_log_run ON error_log(run_id);
	`)
	return err
}

