package tasks

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avdeyev/feedpoll/app/cfg"
	"github.com/avdeyev/feedpoll/app/config"
	"github.com/avdeyev/feedpoll/app/database"
	"github.com/avdeyev/feedpoll/app/feed"
	"github.com/avdeyev/feedpoll/app/fetcher"
	"github.com/avdeyev/feedpoll/app/sink"
	"github.com/avdeyev/feedpoll/app/telemetry"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateDisabled
)

func (s runState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateDisabled:
		return "disabled"
	default:
		return "idle"
	}
}

// feedState tracks one feed's schedule. Mutated only through trigger and
// complete transitions under the scheduler mutex.
type feedState struct {
	state   runState
	nextRun time.Time
}

// Scheduler drives independent per-feed collection cycles over a bounded
// worker pool. At most one cycle per feed runs at a time; a trigger that
// lands while the previous cycle is still running is skipped, never queued.
type Scheduler struct {
	sources    map[string]*config.SourceConfig
	seenRepo   database.SeenRepository
	fetcher    *fetcher.Fetcher
	parser     *feed.Parser
	normalizer *feed.Normalizer
	out        sink.Sink
	recorder   *telemetry.Recorder

	interval      time.Duration
	workerCount   int
	cycleTimeout  time.Duration
	shutdownGrace time.Duration
	retention     time.Duration
	evictEvery    time.Duration

	mu        sync.Mutex
	feeds     map[string]*feedState
	lastEvict time.Time

	// tickCtx stops ticks and prevents new cycles from starting; hardCtx
	// abandons cycles still in flight once the grace period expires.
	tickCtx    context.Context
	tickCancel context.CancelFunc
	hardCtx    context.Context
	hardCancel context.CancelFunc

	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	fatalCh   chan error
}

func NewScheduler(sources map[string]*config.SourceConfig, seenRepo database.SeenRepository,
	httpFetcher *fetcher.Fetcher, parser *feed.Parser, normalizer *feed.Normalizer,
	out sink.Sink, recorder *telemetry.Recorder) *Scheduler {
	tickCtx, tickCancel := context.WithCancel(context.Background())
	hardCtx, hardCancel := context.WithCancel(context.Background())
	c := cfg.Get()

	feeds := make(map[string]*feedState, len(sources))
	for id, src := range sources {
		state := stateIdle
		if !src.Settings.Enabled {
			state = stateDisabled
		}
		// Zero nextRun makes every enabled feed due on the first tick.
		feeds[id] = &feedState{state: state}
	}

	return &Scheduler{
		sources:       sources,
		seenRepo:      seenRepo,
		fetcher:       httpFetcher,
		parser:        parser,
		normalizer:    normalizer,
		out:           out,
		recorder:      recorder,
		interval:      time.Duration(c.SchedulerInterval) * time.Second,
		workerCount:   c.WorkerCount,
		cycleTimeout:  time.Duration(c.CycleTimeout) * time.Second,
		shutdownGrace: time.Duration(c.ShutdownGrace) * time.Second,
		retention:     time.Duration(c.RetentionDays) * 24 * time.Hour,
		evictEvery:    time.Hour,
		feeds:         feeds,
		tickCtx:       tickCtx,
		tickCancel:    tickCancel,
		hardCtx:       hardCtx,
		hardCancel:    hardCancel,
		taskQueue:     make(chan TaskInterface, 300),
		fatalCh:       make(chan error, 1),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(time.Now().UTC())

		for {
			select {
			case <-s.tickCtx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now().UTC())
			}
		}
	}()
}

// Stop lets in-flight cycles finish within the grace period, then abandons
// whatever is still running.
func (s *Scheduler) Stop() {
	s.tickCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.shutdownGrace):
		slog.Warn("Shutdown grace period expired, abandoning in-flight cycles")
		s.hardCancel()
		<-done
	}

	s.hardCancel()
	close(s.taskQueue)
}

// Fatal delivers unrecoverable errors (dedup store corruption) to the main
// loop, which must exit loudly rather than keep collecting.
func (s *Scheduler) Fatal() <-chan error {
	return s.fatalCh
}

// tick triggers a cycle for every feed whose due time has passed. A feed
// still running gets its trigger skipped and its next due time advanced.
func (s *Scheduler) tick(now time.Time) {
	var due []*config.SourceConfig
	var skipped []string

	s.mu.Lock()
	for id, fs := range s.feeds {
		if fs.state == stateDisabled || fs.nextRun.After(now) {
			continue
		}

		src := s.sources[id]
		fs.nextRun = now.Add(src.Settings.GetPollInterval())

		if fs.state == stateRunning {
			skipped = append(skipped, id)
			continue
		}

		fs.state = stateRunning
		due = append(due, src)
	}

	evict := now.Sub(s.lastEvict) >= s.evictEvery
	if evict {
		s.lastEvict = now
	}
	s.mu.Unlock()

	for _, id := range skipped {
		s.recorder.RecordSkip(id, "cycle_running")
	}

	for _, src := range due {
		task := NewCollectFeedTask(src, s.fetcher, s.parser, s.normalizer, s.seenRepo, s.out, s.recorder)
		if !s.enqueue(task) {
			// A dropped trigger counts as a skip so full-queue pressure is
			// visible in the stats, not just the logs.
			s.complete(src.Feed.ID)
			s.recorder.RecordSkip(src.Feed.ID, "queue_full")
		}
	}

	if evict {
		s.enqueue(NewEvictSeenTask(s.seenRepo, s.retention))
	}
}

func (s *Scheduler) enqueue(task TaskInterface) bool {
	select {
	case s.taskQueue <- task:
		return true
	default:
		slog.Warn("Task queue full, dropping task", "type", string(task.GetType()), "feed", task.GetFeedID())
		return false
	}
}

// complete transitions a feed back to idle after its cycle finishes.
func (s *Scheduler) complete(feedID string) {
	s.mu.Lock()
	if fs, ok := s.feeds[feedID]; ok && fs.state == stateRunning {
		fs.state = stateIdle
	}
	s.mu.Unlock()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.tickCtx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	if task.GetType() == TaskTypeCollectFeed {
		defer s.complete(task.GetFeedID())
	}

	// A queued task may race the shutdown signal; never start it once
	// shutdown has begun.
	select {
	case <-s.tickCtx.Done():
		return
	default:
	}

	taskCtx, cancel := context.WithTimeout(s.hardCtx, s.cycleTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	if database.IsCorrupt(err) {
		slog.Error("Dedup store corrupt, halting collection", "worker_id", workerID, "error", err)
		select {
		case s.fatalCh <- err:
		default:
		}
		return
	}

	// Per-cycle failures are already reported through telemetry; anything
	// else (eviction errors) just gets logged.
	if task.GetType() != TaskTypeCollectFeed {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "error", err)
	}
}

// Status reports per-feed schedule state for the status API.
func (s *Scheduler) Status() []FeedStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]FeedStatus, 0, len(s.feeds))
	for id, fs := range s.feeds {
		src := s.sources[id]

		status := FeedStatus{
			ID:           id,
			Name:         src.Feed.Name,
			URL:          src.Feed.URL,
			State:        fs.state.String(),
			SkippedRuns:  s.recorder.Skips(id),
			PollInterval: src.Settings.PollInterval,
		}
		if fs.state != stateDisabled && !fs.nextRun.IsZero() {
			next := fs.nextRun
			status.NextTrigger = &next
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}
