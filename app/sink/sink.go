package sink

import (
	"context"
	"log/slog"

	"github.com/avdeyev/feedpoll/app/feed"
)

// Sink receives each new item exactly when it clears deduplication. Emit is
// synchronous: it either succeeds or returns an error for the cycle report.
// Delivery is at-least-once; a sink may see an item again after a crash
// between emission and the seen-mark.
type Sink interface {
	Emit(ctx context.Context, item feed.Item) error
}

var _ Sink = (*Log)(nil)

// Log writes emitted items to the structured log. Useful for dry runs and
// as a fallback when no output directory is configured.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (s *Log) Emit(ctx context.Context, item feed.Item) error {
	slog.Info("New item",
		"feed", item.FeedID,
		"title", item.Title,
		"link", item.Link,
		"published_at", item.PublishedAt,
		"fingerprint", item.Fingerprint)
	return nil
}
