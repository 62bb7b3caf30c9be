package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avdeyev/feedpoll/app/database"
)

// EvictSeenTask removes seen-item records older than the retention window.
// Runs opportunistically through the same worker pool as collection, so it
// never blocks a fetch or emit path.
type EvictSeenTask struct {
	Task
	seenRepo  database.SeenRepository
	retention time.Duration
}

func NewEvictSeenTask(seenRepo database.SeenRepository, retention time.Duration) *EvictSeenTask {
	return &EvictSeenTask{
		Task:      NewTask(TaskTypeEvictSeen, ""),
		seenRepo:  seenRepo,
		retention: retention,
	}
}

func (t *EvictSeenTask) Execute(ctx context.Context) error {
	t.Start()

	cutoff := time.Now().UTC().Add(-t.retention)
	evicted, err := t.seenRepo.EvictOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("failed to evict seen records: %w", err)
	}

	if evicted > 0 {
		slog.Info("Evicted seen records", "count", evicted, "cutoff", cutoff, "duration", t.GetDuration())
	}

	return nil
}
