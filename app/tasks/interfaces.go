package tasks

import (
	"context"

	"github.com/lysyi3m/rssmaker/app/crawl"
)

// TaskSchedulerInterface is the scheduler surface used by main and the API.
//
//	scheduler := NewScheduler(NewCrawlTaskFactory(...), interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueCrawl()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueCrawl() error
	GetStats() Stats
	Health() map[string]interface{}
}

type CrawlRunner interface {
	Run(ctx context.Context) (*crawl.Result, error)
}

// Publisher ships a saved feed somewhere else, e.g. commits and pushes it.
type Publisher interface {
	Publish(ctx context.Context, result *crawl.Result) error
}
