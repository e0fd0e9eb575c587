package database

type RunRepository interface {
	RecordRun(run Run) (int64, error)
	GetRecentRuns(feedName string, limit int) ([]Run, error)
	GetRunStats(feedName string) (*RunStats, error)
}
