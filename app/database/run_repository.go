package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Fixed-width UTC layout so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) RecordRun(run Run) (int64, error) {
	var reference sql.NullString
	if run.ReferenceTime != nil {
		reference = sql.NullString{String: formatTime(*run.ReferenceTime), Valid: true}
	}

	res, err := r.db.Exec(`
		INSERT INTO runs (
			feed_name, outcome, exit_code, pages, records, inserted, replaced,
			skipped, new_items, saved, error, reference_time, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.FeedName, run.Outcome, run.ExitCode, run.Pages, run.Records, run.Inserted, run.Replaced,
		run.Skipped, run.NewItems, run.Saved, run.Error, reference,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	return id, nil
}

// GetRecentRuns returns up to limit runs of the feed, newest first.
func (r *runRepository) GetRecentRuns(feedName string, limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_name, outcome, exit_code, pages, records, inserted, replaced,
		       skipped, new_items, saved, error, reference_time, started_at, finished_at
		FROM runs
		WHERE feed_name = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var reference sql.NullString
		var startedAt, finishedAt string

		err := rows.Scan(
			&run.ID, &run.FeedName, &run.Outcome, &run.ExitCode, &run.Pages, &run.Records,
			&run.Inserted, &run.Replaced, &run.Skipped, &run.NewItems, &run.Saved, &run.Error,
			&reference, &startedAt, &finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, err
		}
		if run.ReferenceTime, err = parseNullTime(reference); err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func (r *runRepository) GetRunStats(feedName string) (*RunStats, error) {
	var stats RunStats
	var lastRun, lastSaved sql.NullString

	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN saved THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome IN ('failed', 'aborted') THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(new_items), 0),
		       MAX(started_at),
		       MAX(CASE WHEN saved THEN finished_at END)
		FROM runs
		WHERE feed_name = ?
	`, feedName).Scan(&stats.TotalRuns, &stats.SavedRuns, &stats.FailedRuns, &stats.TotalNewItems, &lastRun, &lastSaved)
	if err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}

	if stats.LastRunAt, err = parseNullTime(lastRun); err != nil {
		return nil, err
	}
	if stats.LastSavedAt, err = parseNullTime(lastSaved); err != nil {
		return nil, err
	}

	return &stats, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
