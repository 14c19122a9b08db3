package cache

import (
	"time"

	"github.com/ledgerline/netsuite-restlet-client/pkg/pagination"
)

// Entry is a cached retrieval result together with the bookkeeping
// needed for expiry and listing.
type Entry struct {
	// SearchID and FilterSummary describe the retrieval for listings;
	// the key hash alone is opaque.
	SearchID      string `json:"search_id"`
	FilterSummary string `json:"filter_summary"`

	// Result is the assembled result exactly as returned to the caller.
	Result *pagination.AggregatedResult `json:"result"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`

	// TTL overrides the manager default when positive. Scheduled
	// snapshot refreshes store with a longer window than interactive
	// retrievals.
	TTL time.Duration `json:"ttl,omitempty"`
}

// Expired reports whether the entry has reached its TTL, using
// defaultTTL when the entry carries none. An entry exactly at the
// boundary counts as expired.
func (e *Entry) Expired(defaultTTL time.Duration, now time.Time) bool {
	ttl := e.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return now.Sub(e.CachedAt) >= ttl
}
