package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty=%v)", version, dirty)
	}
	return db
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)

	version, _, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected no error on second migration, got: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
}

func TestRecordAndGetRecentRuns(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	reference := base.Add(-time.Second)

	runs := []Run{
		{FeedName: "deals", Outcome: "done", ExitCode: 0, Pages: 1, NewItems: 3, Inserted: 2, Replaced: 1, Saved: true,
			ReferenceTime: &reference, StartedAt: base, FinishedAt: base.Add(2 * time.Second)},
		{FeedName: "deals", Outcome: "failed", ExitCode: 221, Pages: 2, NewItems: 1, Saved: true, Error: "HTTP 502",
			StartedAt: base.Add(5 * time.Minute), FinishedAt: base.Add(5*time.Minute + 500*time.Millisecond)},
		{FeedName: "other", Outcome: "done", ExitCode: 2, StartedAt: base.Add(10 * time.Minute), FinishedAt: base.Add(10 * time.Minute)},
	}
	for _, run := range runs {
		id, err := repo.RecordRun(run)
		if err != nil {
			t.Fatal(err)
		}
		if id == 0 {
			t.Error("Expected non-zero run id")
		}
	}

	got, err := repo.GetRecentRuns("deals", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(got))
	}

	latest := got[0]
	if latest.Outcome != "failed" || latest.ExitCode != 221 {
		t.Errorf("Expected latest run to be the failed one, got %s/%d", latest.Outcome, latest.ExitCode)
	}
	if latest.Error != "HTTP 502" {
		t.Errorf("Expected error 'HTTP 502', got '%s'", latest.Error)
	}
	if latest.ReferenceTime != nil {
		t.Error("Expected no reference time")
	}
	if latest.Duration() != 500*time.Millisecond {
		t.Errorf("Expected duration 500ms, got %v", latest.Duration())
	}

	first := got[1]
	if !first.Saved || first.Inserted != 2 || first.Replaced != 1 {
		t.Errorf("Unexpected counters: %+v", first)
	}
	if first.ReferenceTime == nil || !first.ReferenceTime.Equal(reference) {
		t.Errorf("Expected reference time %v, got %v", reference, first.ReferenceTime)
	}

	limited, err := repo.GetRecentRuns("deals", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 run with limit, got %d", len(limited))
	}
}

func TestGetRunStats(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	empty, err := repo.GetRunStats("deals")
	if err != nil {
		t.Fatal(err)
	}
	if empty.TotalRuns != 0 || empty.LastRunAt != nil {
		t.Errorf("Expected empty stats, got %+v", empty)
	}

	records := []Run{
		{FeedName: "deals", Outcome: "exhausted", NewItems: 4, Saved: true, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{FeedName: "deals", Outcome: "done", ExitCode: 2, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute)},
		{FeedName: "deals", Outcome: "aborted", ExitCode: 1, StartedAt: base.Add(2 * time.Minute), FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, run := range records {
		if _, err := repo.RecordRun(run); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := repo.GetRunStats("deals")
	if err != nil {
		t.Fatal(err)
	}

	if stats.TotalRuns != 3 {
		t.Errorf("Expected 3 runs, got %d", stats.TotalRuns)
	}
	if stats.SavedRuns != 1 {
		t.Errorf("Expected 1 saved run, got %d", stats.SavedRuns)
	}
	if stats.FailedRuns != 1 {
		t.Errorf("Expected 1 failed run, got %d", stats.FailedRuns)
	}
	if stats.TotalNewItems != 4 {
		t.Errorf("Expected 4 new items, got %d", stats.TotalNewItems)
	}
	if stats.LastRunAt == nil || !stats.LastRunAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("Unexpected last run time: %v", stats.LastRunAt)
	}
	if stats.LastSavedAt == nil || !stats.LastSavedAt.Equal(base.Add(time.Second)) {
		t.Errorf("Unexpected last saved time: %v", stats.LastSavedAt)
	}
}
