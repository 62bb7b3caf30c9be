package feed

import (
	"time"
)

// RawEntry is a single entry as it appears in the source document,
// before normalization. Field values are taken verbatim from the feed.
type RawEntry struct {
	GUID      string
	Title     string
	Link      string
	Summary   string
	Published *time.Time
	Updated   *time.Time
}

// Item is the canonical record handed to the output sink. Immutable once
// built by the Normalizer.
type Item struct {
	FeedID      string    `json:"feed_id"`
	GUID        string    `json:"guid,omitempty"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"` // always UTC, second precision
	Fingerprint string    `json:"fingerprint"`
}
