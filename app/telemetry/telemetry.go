package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CycleReport summarizes one collection cycle for a single feed.
type CycleReport struct {
	FeedID      string
	StartedAt   time.Time
	Duration    time.Duration
	NotModified bool
	Fetched     int // entries present in the document
	Parsed      int // entries usable after parsing
	Skipped     int // entries dropped individually by the parser
	New         int
	Duplicates  int
	Downgrades  int // items whose published timestamp had to be substituted
	Err         error
}

// Failed reports whether the cycle terminated with an error.
func (r CycleReport) Failed() bool {
	return r.Err != nil
}

// Stats is an aggregate snapshot across all feeds since process start.
type Stats struct {
	Cycles         int `json:"cycles"`
	Failures       int `json:"failures"`
	NewItems       int `json:"new_items"`
	Duplicates     int `json:"duplicates"`
	SchedulerSkips int `json:"scheduler_skips"`
}

// Recorder is the telemetry sink: it logs every cycle report and keeps
// aggregate counters for the status API. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	stats Stats
	last  map[string]CycleReport
	skips map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{
		last:  make(map[string]CycleReport),
		skips: make(map[string]int),
	}
}

func (r *Recorder) Record(report CycleReport) {
	r.mu.Lock()
	r.stats.Cycles++
	if report.Failed() {
		r.stats.Failures++
	}
	r.stats.NewItems += report.New
	r.stats.Duplicates += report.Duplicates
	r.last[report.FeedID] = report
	r.mu.Unlock()

	if report.Failed() {
		slog.Error("Cycle failed",
			"feed", report.FeedID,
			"duration", report.Duration,
			"reason", reason(report.Err),
			"error", report.Err)
		return
	}

	slog.Info("Cycle completed",
		"feed", report.FeedID,
		"duration", report.Duration,
		"not_modified", report.NotModified,
		"fetched", report.Fetched,
		"parsed", report.Parsed,
		"skipped", report.Skipped,
		"new", report.New,
		"duplicates", report.Duplicates,
		"downgrades", report.Downgrades)
}

// RecordSkip counts a scheduler trigger that fired but did not start a
// cycle, whatever the cause (previous cycle still running, task queue full).
func (r *Recorder) RecordSkip(feedID, reason string) {
	r.mu.Lock()
	r.stats.SchedulerSkips++
	r.skips[feedID]++
	r.mu.Unlock()

	slog.Warn("Trigger skipped", "feed", feedID, "reason", reason)
}

func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Skips returns the number of skipped triggers recorded for a feed.
func (r *Recorder) Skips(feedID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skips[feedID]
}

// LastReport returns the most recent cycle report for a feed, if any.
func (r *Recorder) LastReport(feedID string) (CycleReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.last[feedID]
	return report, ok
}

func reason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
