package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avdeyev/feedpoll/app/feed"
)

var _ Sink = (*JSONL)(nil)

// JSONL appends one JSON object per emitted item to a per-day file in the
// output directory, named YYYY-MM-DD.jsonl.
type JSONL struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &JSONL{dir: dir, now: time.Now}, nil
}

func (s *JSONL) Emit(ctx context.Context, item feed.Item) error {
	line, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	path := filepath.Join(s.dir, s.now().UTC().Format("2006-01-02")+".jsonl")

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write item: %w", err)
	}

	return nil
}
