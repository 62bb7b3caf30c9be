package tasks

import (
	"context"
	"fmt"

	"github.com/avdeyev/feedpoll/app/config"
	"github.com/avdeyev/feedpoll/app/database"
	"github.com/avdeyev/feedpoll/app/feed"
	"github.com/avdeyev/feedpoll/app/fetcher"
	"github.com/avdeyev/feedpoll/app/sink"
	"github.com/avdeyev/feedpoll/app/telemetry"
)

// CollectFeedTask runs one collection cycle for a single feed:
// fetch, parse, normalize, dedup-filter, emit, mark seen.
type CollectFeedTask struct {
	Task
	Source     *config.SourceConfig
	fetcher    *fetcher.Fetcher
	parser     *feed.Parser
	normalizer *feed.Normalizer
	seenRepo   database.SeenRepository
	out        sink.Sink
	recorder   *telemetry.Recorder
}

func NewCollectFeedTask(source *config.SourceConfig, httpFetcher *fetcher.Fetcher, parser *feed.Parser,
	normalizer *feed.Normalizer, seenRepo database.SeenRepository, out sink.Sink,
	recorder *telemetry.Recorder) *CollectFeedTask {
	return &CollectFeedTask{
		Task:       NewTask(TaskTypeCollectFeed, source.Feed.ID),
		Source:     source,
		fetcher:    httpFetcher,
		parser:     parser,
		normalizer: normalizer,
		seenRepo:   seenRepo,
		out:        out,
		recorder:   recorder,
	}
}

func (t *CollectFeedTask) Execute(ctx context.Context) error {
	t.Start()

	report := telemetry.CycleReport{FeedID: t.FeedID, StartedAt: *t.StartedAt}
	defer func() {
		report.Duration = t.GetDuration()
		t.recorder.Record(report)
	}()

	result, err := t.fetcher.Fetch(ctx, t.Source)
	if err != nil {
		report.Err = fmt.Errorf("failed to fetch feed: %w", err)
		return report.Err
	}

	if result.NotModified {
		report.NotModified = true
		return nil
	}

	entries, skipped, err := t.parser.Run(result.Body)
	if err != nil {
		report.Err = fmt.Errorf("failed to parse feed: %w", err)
		return report.Err
	}
	report.Fetched = len(entries) + skipped
	report.Parsed = len(entries)
	report.Skipped = skipped

	// Items are emitted in document order. A seen-mark is written only after
	// the sink call succeeds, so a crash in between re-emits the item on the
	// next cycle rather than losing it.
	for _, entry := range entries {
		item, downgraded := t.normalizer.Run(t.FeedID, entry, result.FetchedAt)
		if downgraded {
			report.Downgrades++
		}

		seen, err := t.seenRepo.HasSeen(t.FeedID, item.Fingerprint)
		if err != nil {
			// Fail safe: without a dedup answer, emitting risks ambiguous
			// re-delivery, so the cycle degrades to fetched-but-not-emitted.
			report.Err = fmt.Errorf("failed to check seen state: %w", err)
			return report.Err
		}
		if seen {
			report.Duplicates++
			continue
		}

		if err := t.out.Emit(ctx, item); err != nil {
			report.Err = fmt.Errorf("failed to emit item: %w", err)
			return report.Err
		}

		if err := t.seenRepo.MarkSeen(t.FeedID, item.Fingerprint, result.FetchedAt); err != nil {
			report.Err = fmt.Errorf("failed to mark item seen: %w", err)
			return report.Err
		}

		report.New++
	}

	return nil
}
