package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jordanella.com/feed-liker/internal/events"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal", "test.db")
	db, err := OpenJournal(dbPath)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	version, err := db.GetVersion()
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("Expected version %d, got %d", LatestVersion(), version)
	}

	// Running again is a no-op
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.StartRun("run-1", 5, 1, false, 1, now); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordDisposition("run-1", "committed", 10, 10, "", now); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LogError("run-1", "bot", "capture failed", now); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"runs", "dispositions", "error_log"} {
		if stats[table] != 1 {
			t.Errorf("Expected 1 row in %s, got %d", table, stats[table])
		}
	}
	if db.Path() == "" || filepath.Base(db.Path()) != "test.db" {
		t.Errorf("Unexpected path %q", db.Path())
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := db.StartRun("run-1", 10, 0.4, true, 2, started); err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	run, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if run.Status != RunStatusRunning || !run.DryRun || run.Scale != 2 || run.FinishedAt != nil {
		t.Errorf("Unexpected running row: %+v", run)
	}
	if run.Duration() != 0 {
		t.Errorf("Running run should have no duration, got %v", run.Duration())
	}

	if err := db.FinishRun("run-1", 10, 4, 6, "target reached", "", started.Add(90*time.Second)); err != nil {
		t.Fatalf("Failed to finish run: %v", err)
	}

	run, err = db.GetRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusCompleted || run.Processed != 10 || run.Committed != 4 || run.Scrolls != 6 {
		t.Errorf("Unexpected finished row: %+v", run)
	}
	if run.StopReason == nil || *run.StopReason != "target reached" {
		t.Errorf("Expected stop reason, got %v", run.StopReason)
	}
	if run.ErrorMessage != nil {
		t.Errorf("Completed run should have no error, got %q", *run.ErrorMessage)
	}
	if run.Duration() != 90*time.Second {
		t.Errorf("Expected 90s duration, got %v", run.Duration())
	}
}

func TestFinishRunAborted(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.StartRun("run-2", 5, 1, false, 1, now); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun("run-2", 1, 0, 0, "error", "fail-safe triggered", now); err != nil {
		t.Fatal(err)
	}

	run, err := db.GetRun("run-2")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusAborted || run.ErrorMessage == nil || *run.ErrorMessage != "fail-safe triggered" {
		t.Errorf("Unexpected aborted row: %+v", run)
	}
}

func TestUnknownRun(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if err := db.FinishRun("missing", 0, 0, 0, "", "", time.Now()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}

	// Dispositions require a parent run
	if _, err := db.RecordDisposition("missing", "committed", 10, 10, "", time.Now()); err == nil {
		t.Error("Expected foreign key violation")
	}
}

func TestRecentRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := db.StartRun(id, 5, 0.5, false, 1, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		ids := make([]string, len(runs))
		for i, r := range runs {
			ids[i] = r.ID
		}
		t.Errorf("Expected [c b], got %v", ids)
	}
}

func TestDispositions(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.StartRun("run-3", 5, 0.5, false, 1, now); err != nil {
		t.Fatal(err)
	}

	records := []struct {
		disposition string
		y           int
		detail      string
	}{
		{"committed", 120, ""},
		{"skipped-probabilistic", 340, ""},
		{"failed", 560, "action point off screen"},
		{"committed", 780, ""},
	}
	for _, r := range records {
		if _, err := db.RecordDisposition("run-3", r.disposition, r.y, r.y+500, r.detail, now); err != nil {
			t.Fatalf("Failed to record disposition: %v", err)
		}
	}

	got, err := db.Dispositions("run-3")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(records) {
		t.Fatalf("Expected %d records, got %d", len(records), len(got))
	}
	for i, r := range records {
		if got[i].Disposition != r.disposition || got[i].ScreenY != r.y || got[i].InvariantY != r.y+500 {
			t.Errorf("Record %d: unexpected %+v", i, got[i])
		}
	}
	if got[0].Detail != nil {
		t.Errorf("Expected nil detail, got %q", *got[0].Detail)
	}
	if got[2].Detail == nil || *got[2].Detail != "action point off screen" {
		t.Errorf("Expected detail on failed record, got %v", got[2].Detail)
	}

	counts, err := db.DispositionCounts("run-3")
	if err != nil {
		t.Fatal(err)
	}
	if counts["committed"] != 2 || counts["failed"] != 1 || counts["skipped-probabilistic"] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestErrorLogging(t *testing.T) {
	db := openTestDB(t)
	base := time.Now()

	if _, err := db.LogError("", "cli", "templates missing", base); err != nil {
		t.Fatalf("Failed to log error: %v", err)
	}
	if _, err := db.LogError("run-9", "bot", "capture failed", base.Add(time.Second)); err != nil {
		t.Fatalf("Failed to log error: %v", err)
	}

	errs, err := db.GetRecentErrors(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(errs))
	}
	if errs[0].RunID == nil || *errs[0].RunID != "run-9" || errs[0].Source != "bot" {
		t.Errorf("Unexpected newest error: %+v", errs[0])
	}
	if errs[1].RunID != nil {
		t.Errorf("Expected no run ID, got %q", *errs[1].RunID)
	}
}

func TestTransactions(t *testing.T) {
	db := openTestDB(t)

	// Force an error to trigger rollback
	err := db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO runs (id, target_count, probability, started_at) VALUES (?, ?, ?, ?)`,
			"rolled-back", 5, 0.5, time.Now())
		if err != nil {
			return err
		}
		_, err = tx.Exec("INVALID SQL QUERY")
		return err
	})
	if err == nil {
		t.Fatal("Expected transaction error")
	}

	if _, err := db.GetRun("rolled-back"); !errors.Is(err, ErrRunNotFound) {
		t.Error("Transaction did not rollback correctly")
	}
}

func TestRecorderJournalsRunEvents(t *testing.T) {
	db := openTestDB(t)
	bus := events.NewEventBus()
	recorder := NewRecorder(db, bus, nil)

	bus.Publish(events.NewRunStartedEvent("run-e", 3, 0.5, true, 2))
	bus.Publish(events.NewElementDisposedEvent("run-e", "simulated", 100, 100, ""))
	bus.Publish(events.NewElementDisposedEvent("run-e", "skipped-duplicate", 40, 101, ""))
	bus.Publish(events.NewFeedScrolledEvent("run-e", 10, 800, 800))
	bus.Publish(events.NewErrorEvent("bot", "run-e", errors.New("capture failed"), nil))
	bus.Publish(events.NewRunFinishedEvent("run-e", 3, 1, 1, "error", errors.New("capture failed")))

	if recorder.Failures() != 0 {
		t.Fatalf("Expected no journal failures, got %d", recorder.Failures())
	}

	run, err := db.GetRun("run-e")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusAborted || run.TargetCount != 3 || run.Scale != 2 || !run.DryRun {
		t.Errorf("Unexpected run row: %+v", run)
	}
	if run.Processed != 3 || run.Committed != 1 || run.Scrolls != 1 {
		t.Errorf("Unexpected counters: %+v", run)
	}

	records, err := db.Dispositions("run-e")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1].InvariantY != 101 {
		t.Errorf("Unexpected dispositions: %d records", len(records))
	}

	errs, err := db.GetRecentErrors(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].ErrorMessage != "capture failed" {
		t.Errorf("Expected one journaled error, got %d", len(errs))
	}

	// Unsubscribed recorders write nothing further
	recorder.Close()
	bus.Publish(events.NewRunStartedEvent("run-f", 3, 0.5, true, 1))
	if _, err := db.GetRun("run-f"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Closed recorder still journaling: %v", err)
	}
}

func TestRecorderJournalsRunAbortedBeforeStart(t *testing.T) {
	db := openTestDB(t)
	bus := events.NewEventBus()
	recorder := NewRecorder(db, bus, nil)
	defer recorder.Close()

	cause := errors.New("menu_trigger template missing")
	bus.Publish(events.NewErrorEvent("bot", "run-s", cause, nil))
	bus.Publish(events.NewRunFinishedEvent("run-s", 0, 0, 0, "error", cause))

	if recorder.Failures() != 0 {
		t.Fatalf("Expected no journal failures, got %d", recorder.Failures())
	}

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "run-s" {
		t.Fatalf("Expected the aborted run in history, got %d runs", len(runs))
	}
	run := runs[0]
	if run.Status != RunStatusAborted || run.ErrorMessage == nil || *run.ErrorMessage != cause.Error() {
		t.Errorf("Unexpected aborted row: %+v", run)
	}
	if run.StopReason == nil || *run.StopReason != "error" || run.Duration() != 0 {
		t.Errorf("Unexpected stop reason or duration: %+v", run)
	}
}

func TestRecordUnstartedRunRejectsDuplicate(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.StartRun("run-d", 5, 1, false, 1, now); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordUnstartedRun("run-d", "error", "boom", now); err == nil {
		t.Error("Expected primary key violation")
	}
}

func TestRecorderCountsFailures(t *testing.T) {
	db := openTestDB(t)
	bus := events.NewEventBus()
	recorder := NewRecorder(db, bus, nil)
	defer recorder.Close()

	// No run row exists for this disposition
	bus.Publish(events.NewElementDisposedEvent("ghost", "committed", 10, 10, ""))

	if recorder.Failures() != 1 {
		t.Errorf("Expected 1 failure, got %d", recorder.Failures())
	}
}
