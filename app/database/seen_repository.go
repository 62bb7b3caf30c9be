package database

import (
	"database/sql"
	"time"
)

var _ SeenRepository = (*SeenItemRepository)(nil)

// SeenItemRepository persists seen-item fingerprints per feed in SQLite
type SeenItemRepository struct {
	db *DB
}

func NewSeenItemRepository(db *DB) *SeenItemRepository {
	return &SeenItemRepository{db: db}
}

// HasSeen reports whether a fingerprint has been recorded for a feed
func (r *SeenItemRepository) HasSeen(feedID, fingerprint string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM seen_items WHERE feed_id = ? AND fingerprint = ? LIMIT 1
	`, feedID, fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classifyStoreError(err)
	}
	return true, nil
}

// MarkSeen records a fingerprint for a feed. Idempotent: marking an
// already-seen fingerprint keeps the original first-seen timestamp.
func (r *SeenItemRepository) MarkSeen(feedID, fingerprint string, firstSeen time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO seen_items (feed_id, fingerprint, first_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (feed_id, fingerprint) DO NOTHING
	`, feedID, fingerprint, firstSeen.UTC().Unix())
	if err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// EvictOlderThan removes records first seen before the cutoff and returns
// the number of records evicted
func (r *SeenItemRepository) EvictOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM seen_items WHERE first_seen_at < ?
	`, cutoff.UTC().Unix())
	if err != nil {
		return 0, classifyStoreError(err)
	}

	evicted, err := result.RowsAffected()
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return evicted, nil
}

// SeenCount returns the total number of seen records across all feeds
func (r *SeenItemRepository) SeenCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM seen_items").Scan(&count)
	if err != nil {
		return 0, classifyStoreError(err)
	}
	return count, nil
}
