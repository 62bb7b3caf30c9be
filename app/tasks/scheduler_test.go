package tasks

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avdeyev/feedpoll/app/cfg"
	"github.com/avdeyev/feedpoll/app/config"
	"github.com/avdeyev/feedpoll/app/database"
	"github.com/avdeyev/feedpoll/app/feed"
	"github.com/avdeyev/feedpoll/app/fetcher"
	"github.com/avdeyev/feedpoll/app/telemetry"
)

// stubSeenRepo satisfies the repository interface without touching SQLite.
type stubSeenRepo struct{}

func (stubSeenRepo) HasSeen(feedID, fingerprint string) (bool, error) { return false, nil }

func (stubSeenRepo) MarkSeen(feedID, fingerprint string, t time.Time) error { return nil }

func (stubSeenRepo) EvictOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

func (stubSeenRepo) SeenCount() (int, error) { return 0, nil }

var _ database.SeenRepository = stubSeenRepo{}

// corruptSeenRepo reports store corruption on every dedup check.
type corruptSeenRepo struct{ stubSeenRepo }

func (corruptSeenRepo) HasSeen(feedID, fingerprint string) (bool, error) {
	return false, &database.StoreError{Kind: database.StoreCorrupt, Cause: errors.New("database disk image is malformed")}
}

func testScheduler(t *testing.T, sources map[string]*config.SourceConfig) (*Scheduler, *telemetry.Recorder) {
	t.Helper()
	return testSchedulerRepo(t, sources, stubSeenRepo{})
}

func testSchedulerRepo(t *testing.T, sources map[string]*config.SourceConfig, repo database.SeenRepository) (*Scheduler, *telemetry.Recorder) {
	t.Helper()

	cfg.Set(&cfg.Cfg{
		WorkerCount:       2,
		SchedulerInterval: 1,
		CycleTimeout:      60,
		ShutdownGrace:     1,
		RetentionDays:     30,
		UserAgent:         "test-agent",
	})

	policy := fetcher.BackoffPolicy{Base: time.Millisecond, Max: 5 * time.Millisecond}
	f := fetcher.NewFetcher(&http.Client{}, policy, 0, 1<<20, "test-agent")
	recorder := telemetry.NewRecorder()

	return NewScheduler(sources, repo, f, feed.NewParser(), feed.NewNormalizer(), newCaptureSink(), recorder), recorder
}

func schedulerSources() map[string]*config.SourceConfig {
	return map[string]*config.SourceConfig{
		"feed-a": {
			Feed:     config.FeedInfo{ID: "feed-a", URL: "https://a.example.com/rss"},
			Settings: config.SourceSettings{Enabled: true, PollInterval: 60, Timeout: 5},
		},
		"feed-b": {
			Feed:     config.FeedInfo{ID: "feed-b", URL: "https://b.example.com/rss"},
			Settings: config.SourceSettings{Enabled: false, PollInterval: 60, Timeout: 5},
		},
	}
}

// drainQueue pulls all currently queued tasks without executing them.
func drainQueue(s *Scheduler) []TaskInterface {
	var tasks []TaskInterface
	for {
		select {
		case task := <-s.taskQueue:
			tasks = append(tasks, task)
		default:
			return tasks
		}
	}
}

func collectTasksFor(tasks []TaskInterface, feedID string) int {
	count := 0
	for _, task := range tasks {
		if task.GetType() == TaskTypeCollectFeed && task.GetFeedID() == feedID {
			count++
		}
	}
	return count
}

func TestTickTriggersDueEnabledFeeds(t *testing.T) {
	s, _ := testScheduler(t, schedulerSources())
	now := time.Now().UTC()

	s.tick(now)
	tasks := drainQueue(s)

	if got := collectTasksFor(tasks, "feed-a"); got != 1 {
		t.Errorf("Expected 1 collect task for enabled feed-a, got: %d", got)
	}
	if got := collectTasksFor(tasks, "feed-b"); got != 0 {
		t.Errorf("Expected no collect task for disabled feed-b, got: %d", got)
	}
}

func TestNoOverlapSkipsTrigger(t *testing.T) {
	s, recorder := testScheduler(t, schedulerSources())
	now := time.Now().UTC()

	s.tick(now)
	drainQueue(s)

	// feed-a is still running when its next trigger comes due: the trigger
	// is skipped, never queued, and the skip is recorded.
	next := now.Add(61 * time.Second)
	s.tick(next)
	tasks := drainQueue(s)

	if got := collectTasksFor(tasks, "feed-a"); got != 0 {
		t.Errorf("Expected no concurrent second cycle for feed-a, got: %d", got)
	}
	if recorder.Skips("feed-a") != 1 {
		t.Errorf("Expected 1 recorded skip for feed-a, got: %d", recorder.Skips("feed-a"))
	}

	// After the skip the schedule stays alive: completion plus the next due
	// time triggers again.
	s.complete("feed-a")
	s.tick(next.Add(61 * time.Second))
	tasks = drainQueue(s)
	if got := collectTasksFor(tasks, "feed-a"); got != 1 {
		t.Errorf("Expected next trigger after completion, got: %d", got)
	}
}

func TestTickRespectsNextDueTime(t *testing.T) {
	s, _ := testScheduler(t, schedulerSources())
	now := time.Now().UTC()

	s.tick(now)
	drainQueue(s)
	s.complete("feed-a")

	// Well before the poll interval elapses nothing is due.
	s.tick(now.Add(10 * time.Second))
	tasks := drainQueue(s)
	if got := collectTasksFor(tasks, "feed-a"); got != 0 {
		t.Errorf("Expected no trigger before the poll interval, got: %d", got)
	}
}

func TestTickEnqueuesEviction(t *testing.T) {
	s, _ := testScheduler(t, schedulerSources())

	s.tick(time.Now().UTC())
	tasks := drainQueue(s)

	evictions := 0
	for _, task := range tasks {
		if task.GetType() == TaskTypeEvictSeen {
			evictions++
		}
	}
	if evictions != 1 {
		t.Errorf("Expected 1 eviction task on the first tick, got: %d", evictions)
	}

	// Eviction is rate-limited, not per-tick.
	s.tick(time.Now().UTC().Add(time.Minute))
	for _, task := range drainQueue(s) {
		if task.GetType() == TaskTypeEvictSeen {
			t.Error("Expected no eviction task within the eviction interval")
		}
	}
}

func TestStatus(t *testing.T) {
	s, _ := testScheduler(t, schedulerSources())
	s.tick(time.Now().UTC())

	statuses := s.Status()
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 feed statuses, got: %d", len(statuses))
	}

	// Sorted by feed ID
	if statuses[0].ID != "feed-a" || statuses[1].ID != "feed-b" {
		t.Errorf("Expected feed-a, feed-b order, got: %s, %s", statuses[0].ID, statuses[1].ID)
	}
	if statuses[0].State != "running" {
		t.Errorf("Expected feed-a running after trigger, got: %s", statuses[0].State)
	}
	if statuses[0].NextTrigger == nil {
		t.Error("Expected next trigger time for feed-a")
	}
	if statuses[1].State != "disabled" {
		t.Errorf("Expected feed-b disabled, got: %s", statuses[1].State)
	}
}

func TestStartStop(t *testing.T) {
	s, _ := testScheduler(t, map[string]*config.SourceConfig{})

	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduler did not stop within the grace period")
	}
}

func TestStopAbandonsStalledCycleAfterGrace(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	// Per-request timeout well past the shutdown grace, so only the hard
	// stop can unblock the fetch.
	src := feedSource(server.URL)
	src.Settings.Timeout = 300
	s, _ := testScheduler(t, map[string]*config.SourceConfig{src.Feed.ID: src})

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Cycle never started fetching")
	}

	stopStart := time.Now()
	s.Stop()
	if elapsed := time.Since(stopStart); elapsed > 4*time.Second {
		t.Fatalf("Expected Stop to return shortly after the grace period, took: %v", elapsed)
	}
}

func TestCorruptStoreReachesFatalChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoItemFeed)
	}))
	defer server.Close()

	src := feedSource(server.URL)
	s, _ := testSchedulerRepo(t, map[string]*config.SourceConfig{src.Feed.ID: src}, corruptSeenRepo{})

	s.tick(time.Now().UTC())
	var collect TaskInterface
	for _, task := range drainQueue(s) {
		if task.GetType() == TaskTypeCollectFeed {
			collect = task
		}
	}
	if collect == nil {
		t.Fatal("Expected a queued collect task")
	}

	s.executeTask(0, collect)

	select {
	case err := <-s.Fatal():
		if !database.IsCorrupt(err) {
			t.Errorf("Expected a corrupt store error on the fatal channel, got: %v", err)
		}
	default:
		t.Fatal("Expected store corruption to reach the fatal channel")
	}
}

func TestFullQueueDropsTriggerAndRecordsSkip(t *testing.T) {
	s, recorder := testScheduler(t, schedulerSources())
	for i := 0; i < cap(s.taskQueue); i++ {
		s.taskQueue <- NewEvictSeenTask(stubSeenRepo{}, time.Hour)
	}

	s.tick(time.Now().UTC())

	if got := collectTasksFor(drainQueue(s), "feed-a"); got != 0 {
		t.Errorf("Expected no collect task to fit the full queue, got: %d", got)
	}
	if recorder.Skips("feed-a") != 1 {
		t.Errorf("Expected the dropped trigger to count as a skip, got: %d", recorder.Skips("feed-a"))
	}

	// The feed returns to idle so the next due trigger can fire normally.
	for _, status := range s.Status() {
		if status.ID == "feed-a" && status.State != "idle" {
			t.Errorf("Expected feed-a back to idle after the drop, got: %s", status.State)
		}
	}
}
