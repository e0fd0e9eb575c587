package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize   = 10
	taskTimeout = 5 * time.Minute
	maxBackoff  = 30 * time.Second
)

// Stats holds scheduler statistics
type Stats struct {
	QueueSize       int
	TotalProcessed  int64
	TotalErrors     int64
	LastProcessedAt *time.Time
	LastError       string
}

// Scheduler runs crawl tasks on a fixed interval. It has exactly one worker
// so two crawls never write the feed file at the same time.
type Scheduler struct {
	newTask    func() TaskInterface
	interval   time.Duration
	retryDelay func(retry int) time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	taskQueue  chan TaskInterface
	mu         sync.RWMutex
	stats      Stats
}

func NewScheduler(newTask func() TaskInterface, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		newTask:    newTask,
		interval:   interval,
		retryDelay: backoff,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if err := s.EnqueueCrawl(); err != nil {
			slog.Warn("Failed to enqueue startup crawl", "error", err)
		}

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.EnqueueCrawl(); err != nil {
					slog.Warn("Failed to enqueue crawl", "error", err)
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueCrawl queues a new crawl unless one is already waiting.
func (s *Scheduler) EnqueueCrawl() error {
	if len(s.taskQueue) > 0 {
		slog.Debug("Crawl already queued, skipping")
		return nil
	}
	return s.EnqueueTask(s.newTask())
}

func (s *Scheduler) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	stats.QueueSize = len(s.taskQueue)
	return stats
}

// Health returns the health status of the scheduler
func (s *Scheduler) Health() map[string]interface{} {
	stats := s.GetStats()

	health := map[string]interface{}{
		"status":          "healthy",
		"queue_size":      stats.QueueSize,
		"total_processed": stats.TotalProcessed,
		"total_errors":    stats.TotalErrors,
		"interval":        s.interval.String(),
	}

	if stats.LastProcessedAt != nil {
		health["last_processed_at"] = stats.LastProcessedAt.Format(time.RFC3339)
	}
	if stats.LastError != "" {
		health["last_error"] = stats.LastError
	}

	if stats.TotalProcessed > 0 {
		errorRate := float64(stats.TotalErrors) / float64(stats.TotalProcessed)
		if errorRate > 0.5 {
			health["status"] = "unhealthy"
		} else if errorRate > 0.1 {
			health["status"] = "degraded"
		}
		health["error_rate"] = errorRate
	}

	return health
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.recordExecution(err)

	if err == nil {
		return
	}

	slog.Error("Task execution failed", append(task.LogAttrs(), "error", err)...)

	if !task.Retryable(err) {
		slog.Error("Task failed permanently, waiting for next run", append(task.LogAttrs(), "error", err)...)
		return
	}
	if !task.Retry() {
		slog.Error("Task failed after maximum retries", append(task.LogAttrs(), "max_retries", task.GetMaxRetries(), "last_error", err)...)
		return
	}

	retryDelay := s.retryDelay(task.GetAttempt() - 1)

	slog.Warn("Task retry scheduled", append(task.LogAttrs(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", task.LogAttrs()...)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", append(task.LogAttrs(), "error", retryErr)...)
			}
		}
	}()
}

func (s *Scheduler) recordExecution(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.stats.TotalProcessed++
	s.stats.LastProcessedAt = &now
	if err != nil {
		s.stats.TotalErrors++
		s.stats.LastError = err.Error()
	}
}

// backoff doubles from one second, capped at maxBackoff.
func backoff(retry int) time.Duration {
	delay := time.Duration(1<<uint(retry-1)) * time.Second
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
