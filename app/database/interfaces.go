package database

import (
	"time"
)

// SeenRepository answers membership queries over previously collected item
// fingerprints. The store is the only shared mutable resource across
// concurrent feed cycles; implementations must be safe for concurrent use.
type SeenRepository interface {
	HasSeen(feedID, fingerprint string) (bool, error)
	MarkSeen(feedID, fingerprint string, firstSeen time.Time) error
	EvictOlderThan(cutoff time.Time) (int64, error)
	SeenCount() (int, error)
}
