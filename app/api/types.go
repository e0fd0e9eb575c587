package api

import (
	"github.com/lysyi3m/rssmaker/app/database"
	"github.com/lysyi3m/rssmaker/app/feed"
	"github.com/lysyi3m/rssmaker/app/tasks"
)

type GeneratorInterface interface {
	Run(doc *feed.Document) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	feedConfig *feed.Config
	store      feed.Store
	generator  GeneratorInterface
	runRepo    database.RunRepository
	scheduler  tasks.TaskSchedulerInterface
}
