package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avdeyev/feedpoll/app/tasks"
	"github.com/avdeyev/feedpoll/app/telemetry"
)

type mockSeenRepo struct {
	count int
	err   error
}

func (m *mockSeenRepo) HasSeen(feedID, fingerprint string) (bool, error) { return false, nil }

func (m *mockSeenRepo) MarkSeen(feedID, fingerprint string, t time.Time) error { return nil }

func (m *mockSeenRepo) EvictOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

func (m *mockSeenRepo) SeenCount() (int, error) { return m.count, m.err }

type mockScheduler struct {
	statuses []tasks.FeedStatus
}

func (m *mockScheduler) Start() {}

func (m *mockScheduler) Stop() {}

func (m *mockScheduler) Fatal() <-chan error { return nil }

func (m *mockScheduler) Status() []tasks.FeedStatus { return m.statuses }

func TestHealthCheck(t *testing.T) {
	handler := NewHandler(&mockSeenRepo{count: 5}, telemetry.NewRecorder(), &mockScheduler{})
	server := NewServer(handler)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got: %d", w.Code)
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	handler := NewHandler(&mockSeenRepo{err: errors.New("store down")}, telemetry.NewRecorder(), &mockScheduler{})
	server := NewServer(handler)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got: %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	recorder := telemetry.NewRecorder()
	recorder.Record(telemetry.CycleReport{FeedID: "feed-a", New: 3, Duplicates: 2})
	recorder.RecordSkip("feed-a", "cycle_running")

	handler := NewHandler(&mockSeenRepo{count: 42}, recorder, &mockScheduler{})
	server := NewServer(handler)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got: %d", w.Code)
	}

	var body struct {
		Collection  telemetry.Stats `json:"collection"`
		SeenRecords int             `json:"seen_records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if body.SeenRecords != 42 {
		t.Errorf("Expected 42 seen records, got: %d", body.SeenRecords)
	}
	if body.Collection.NewItems != 3 || body.Collection.Duplicates != 2 || body.Collection.SchedulerSkips != 1 {
		t.Errorf("Unexpected collection stats: %+v", body.Collection)
	}
}

func TestListFeeds(t *testing.T) {
	scheduler := &mockScheduler{statuses: []tasks.FeedStatus{
		{ID: "feed-a", State: "idle", PollInterval: 60},
	}}
	handler := NewHandler(&mockSeenRepo{}, telemetry.NewRecorder(), scheduler)
	server := NewServer(handler)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feeds", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got: %d", w.Code)
	}

	var body struct {
		Feeds []tasks.FeedStatus `json:"feeds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(body.Feeds) != 1 || body.Feeds[0].ID != "feed-a" {
		t.Errorf("Unexpected feeds payload: %+v", body.Feeds)
	}
}
