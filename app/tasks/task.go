package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeCrawl TaskType = "crawl"
)

// DefaultMaxRetries is the number of extra attempts a failed crawl gets
// before the scheduler waits for the next tick.
const DefaultMaxRetries = 3

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetFeedName() string
	GetAttempt() int
	GetMaxRetries() int
	// Retryable reports whether err is worth another attempt.
	Retryable(err error) bool
	// Retry consumes one retry from the budget. It returns false once the
	// budget is spent.
	Retry() bool
	Start()
	GetDuration() time.Duration
	LogAttrs() []any
}

// Task carries the identity and attempt bookkeeping of work scheduled for
// one feed.
type Task struct {
	ID         string
	Type       TaskType
	FeedName   string
	Attempt    int // 1 on the first run
	MaxRetries int
	StartedAt  *time.Time
}

func NewTask(taskType TaskType, feedName string, maxRetries int) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		FeedName:   feedName,
		Attempt:    1,
		MaxRetries: maxRetries,
	}
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetFeedName() string {
	return t.FeedName
}

func (t *Task) GetAttempt() int {
	return t.Attempt
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

// Retryable treats every error except cancellation as transient.
func (t *Task) Retryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (t *Task) Retry() bool {
	if t.Attempt > t.MaxRetries {
		return false
	}
	t.Attempt++
	return true
}

// Start marks the beginning of the current attempt.
func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

// LogAttrs returns the slog key/value pairs identifying this attempt.
func (t *Task) LogAttrs() []any {
	return []any{"type", string(t.Type), "id", t.ID, "feed", t.FeedName, "attempt", t.Attempt}
}
