package tasks

import (
	"context"
	"time"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetFeedID() string
	Start()
	GetDuration() time.Duration
}

// FeedStatus describes one feed's schedule state for the status API.
type FeedStatus struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	URL          string     `json:"url"`
	State        string     `json:"state"`
	NextTrigger  *time.Time `json:"next_trigger,omitempty"`
	SkippedRuns  int        `json:"skipped_runs"`
	PollInterval int        `json:"poll_interval"`
}

// TaskSchedulerInterface is the surface the main application and the status
// API use to drive and observe background collection.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Fatal() <-chan error
	Status() []FeedStatus
}
