package database

import (
	"time"
)

type Run struct {
	ID            int64
	FeedName      string
	Outcome       string // done, exhausted, failed, aborted
	ExitCode      int
	Pages         int
	Records       int
	Inserted      int
	Replaced      int
	Skipped       int
	NewItems      int
	Saved         bool
	Error         string
	ReferenceTime *time.Time // Date header of the first page
	StartedAt     time.Time
	FinishedAt    time.Time
}

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type RunStats struct {
	TotalRuns     int
	SavedRuns     int
	FailedRuns    int
	TotalNewItems int
	LastRunAt     *time.Time
	LastSavedAt   *time.Time
}
