package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rssmaker/app/database"
	"github.com/lysyi3m/rssmaker/app/feed"
	"github.com/lysyi3m/rssmaker/app/tasks"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// NewHandler wires the HTTP handlers. runRepo may be nil when run history is
// disabled.
func NewHandler(feedConfig *feed.Config, store feed.Store, generator GeneratorInterface,
	runRepo database.RunRepository, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedConfig: feedConfig,
		store:      store,
		generator:  generator,
		runRepo:    runRepo,
		scheduler:  scheduler,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	doc, err := h.store.Load()
	if errors.Is(err, feed.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load feed", "feed", h.feedConfig.Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(doc)
	if err != nil {
		slog.Error("RSS generation error", "feed", h.feedConfig.Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(doc.Items)))
	c.Header("X-Feed-Name", h.feedConfig.Name)
	if !doc.Channel.LastBuildDate.IsZero() {
		c.Header("X-Last-Updated", doc.Channel.LastBuildDate.Format(time.RFC3339))
	}

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"feed":      h.feedConfig.Name,
	}

	status := http.StatusOK
	if h.scheduler != nil {
		schedulerHealth := h.scheduler.Health()
		health["scheduler"] = schedulerHealth
		if schedulerHealth["status"] == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"feed":      h.feedConfig.Name,
		"max_items": h.feedConfig.Settings.MaxItems,
		"max_pages": h.feedConfig.Settings.MaxPages,
	}

	if doc, err := h.store.Load(); err == nil {
		stats["items"] = len(doc.Items)
		if !doc.Channel.LastBuildDate.IsZero() {
			stats["last_build_date"] = doc.Channel.LastBuildDate.Format(time.RFC3339)
		}
	}

	if h.scheduler != nil {
		schedulerStats := h.scheduler.GetStats()
		stats["scheduler"] = map[string]interface{}{
			"queue_size":      schedulerStats.QueueSize,
			"total_processed": schedulerStats.TotalProcessed,
			"total_errors":    schedulerStats.TotalErrors,
		}
	}

	if h.runRepo != nil {
		runStats, err := h.runRepo.GetRunStats(h.feedConfig.Name)
		if err != nil {
			slog.Error("Database error", "operation", "get_run_stats", "feed", h.feedConfig.Name, "error", err)
		} else {
			stats["runs"] = map[string]interface{}{
				"total":           runStats.TotalRuns,
				"saved":           runStats.SavedRuns,
				"failed":          runStats.FailedRuns,
				"total_new_items": runStats.TotalNewItems,
				"last_run_at":     runStats.LastRunAt,
				"last_saved_at":   runStats.LastSavedAt,
			}
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	if h.runRepo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history is disabled"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	runs, err := h.runRepo.GetRecentRuns(h.feedConfig.Name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_runs", "feed", h.feedConfig.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		items = append(items, map[string]interface{}{
			"id":             run.ID,
			"outcome":        run.Outcome,
			"exit_code":      run.ExitCode,
			"pages":          run.Pages,
			"new_items":      run.NewItems,
			"inserted":       run.Inserted,
			"replaced":       run.Replaced,
			"skipped":        run.Skipped,
			"saved":          run.Saved,
			"error":          run.Error,
			"reference_time": run.ReferenceTime,
			"started_at":     run.StartedAt,
			"duration":       run.Duration().String(),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feed":  h.feedConfig.Name,
		"runs":  items,
		"total": len(items),
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	if err := h.scheduler.EnqueueCrawl(); err != nil {
		slog.Error("Error enqueueing crawl task", "feed", h.feedConfig.Name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue crawl task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Crawl enqueued",
		"feed":    h.feedConfig.Name,
	})
}
