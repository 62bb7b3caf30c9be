package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Normalizer maps raw entries into canonical items and computes the
// deduplication fingerprint. Safe for concurrent use across feed cycles.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Run builds a canonical Item for a raw entry. The returned bool reports
// whether the published timestamp had to be downgraded to the updated
// timestamp or the fetch time.
func (n *Normalizer) Run(feedID string, entry RawEntry, fetchedAt time.Time) (Item, bool) {
	item := Item{
		FeedID:  feedID,
		GUID:    entry.GUID,
		Title:   collapseWhitespace(entry.Title),
		Link:    strings.TrimSpace(entry.Link),
		Summary: collapseWhitespace(entry.Summary),
	}

	publishedAt, downgraded := resolveTimestamp(entry, fetchedAt)
	item.PublishedAt = publishedAt.UTC().Truncate(time.Second)
	item.Fingerprint = n.fingerprint(item)

	return item, downgraded
}

// resolveTimestamp picks the item timestamp: explicit published time first,
// updated time second, fetch time as the last resort. Entries with an
// ambiguous or missing timezone already come back from the parser as UTC.
func resolveTimestamp(entry RawEntry, fetchedAt time.Time) (time.Time, bool) {
	if entry.Published != nil && !entry.Published.IsZero() {
		return *entry.Published, false
	}
	if entry.Updated != nil && !entry.Updated.IsZero() {
		return *entry.Updated, true
	}
	return fetchedAt, true
}

// fingerprint hashes GUID-or-link, the case-folded title, and the resolved
// timestamp at one-second precision. Feeds that reuse a link across items
// published at different times therefore still get distinct fingerprints.
func (n *Normalizer) fingerprint(item Item) string {
	key := cmp.Or(item.GUID, item.Link)
	// A cases.Caser carries state, so a fresh one is used per call.
	content := fmt.Sprintf("%s|%s|%d", key, cases.Fold().String(item.Title), item.PublishedAt.Unix())

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
