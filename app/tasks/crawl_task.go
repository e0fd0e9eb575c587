package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rssmaker/app/crawl"
	"github.com/lysyi3m/rssmaker/app/database"
	"github.com/lysyi3m/rssmaker/app/recency"
)

type CrawlTask struct {
	Task
	crawler   CrawlRunner
	runRepo   database.RunRepository
	publisher Publisher
	result    *crawl.Result
}

// NewCrawlTask creates a crawl of feedName. runRepo and publisher are
// optional.
func NewCrawlTask(feedName string, crawler CrawlRunner, runRepo database.RunRepository, publisher Publisher) *CrawlTask {
	return &CrawlTask{
		Task:      NewTask(TaskTypeCrawl, feedName, DefaultMaxRetries),
		crawler:   crawler,
		runRepo:   runRepo,
		publisher: publisher,
	}
}

// NewCrawlTaskFactory returns a constructor for scheduled crawls sharing the
// same collaborators.
func NewCrawlTaskFactory(feedName string, crawler CrawlRunner, runRepo database.RunRepository, publisher Publisher) func() TaskInterface {
	return func() TaskInterface {
		return NewCrawlTask(feedName, crawler, runRepo, publisher)
	}
}

// Result returns the outcome of the last Execute call.
func (t *CrawlTask) Result() *crawl.Result {
	return t.result
}

// Retryable rejects failures caused by the listing markup itself, which
// another attempt against the same page would hit again.
func (t *CrawlTask) Retryable(err error) bool {
	if errors.Is(err, recency.ErrMalformedFragment) {
		return false
	}
	return t.Task.Retryable(err)
}

// Execute runs one crawl. Transport failures and fatal errors are returned
// so the scheduler can retry; changes saved before a transport failure are
// still published.
func (t *CrawlTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.crawler.Run(ctx)
	t.result = result
	if result == nil {
		return fmt.Errorf("crawl returned no result: %w", err)
	}

	t.recordRun(result)

	if result.Saved && t.publisher != nil {
		if pubErr := t.publisher.Publish(ctx, result); pubErr != nil {
			return fmt.Errorf("failed to publish feed: %w", pubErr)
		}
	}

	slog.Info("Task completed",
		"type", "Crawl",
		"feed", t.FeedName,
		"attempt", t.Attempt,
		"duration", t.GetDuration(),
		"outcome", string(result.Outcome),
		"pages", result.Pages,
		"new", result.NewItems,
		"skipped", result.Skipped,
		"exit_code", result.ExitCode())

	if err != nil {
		return fmt.Errorf("crawl aborted: %w", err)
	}
	if result.Outcome == crawl.OutcomeFailed {
		return fmt.Errorf("crawl stopped early: %w", result.Err)
	}

	return nil
}

func (t *CrawlTask) recordRun(result *crawl.Result) {
	if t.runRepo == nil {
		return
	}

	run := database.Run{
		FeedName:   t.FeedName,
		Outcome:    string(result.Outcome),
		ExitCode:   result.ExitCode(),
		Pages:      result.Pages,
		Records:    result.Records,
		Inserted:   result.Inserted,
		Replaced:   result.Replaced,
		Skipped:    result.Skipped,
		NewItems:   result.NewItems,
		Saved:      result.Saved,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if result.Err != nil {
		run.Error = result.Err.Error()
	}
	if !result.ReferenceTime.IsZero() {
		reference := result.ReferenceTime
		run.ReferenceTime = &reference
	}

	if _, err := t.runRepo.RecordRun(run); err != nil {
		slog.Warn("Failed to record run", "feed", t.FeedName, "error", err)
	}
}
