// Package cache provides content-addressed caching of assembled search
// results with pluggable disk and Redis backends.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ledgerline/netsuite-restlet-client/pkg/filter"
)

// Key identifies one cached retrieval: a saved search plus the exact
// filter set it was fetched with.
type Key struct {
	SearchID string
	Filters  filter.Params
}

// Canonical returns the deterministic string the key hash is computed
// from. Filter list fields are sorted, so two keys built from the same
// logical filters hash identically regardless of field order.
func (k Key) Canonical() string {
	return k.SearchID + "|" + k.Filters.CanonicalString()
}

// Hash returns the hex SHA-256 of the canonical string. Used as the
// storage identifier; safe as a filename and as a Redis key segment.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k.Canonical()))
	return hex.EncodeToString(sum[:])
}

// String generates the namespaced storage key.
//
// Example:
//
//	restlet:customsearch_gl_detail:3a7bd3e2360a3d29...
func (k Key) String() string {
	return "restlet:" + k.SearchID + ":" + k.Hash()
}
