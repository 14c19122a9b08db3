// Package retrieval is the high-level entry point: cache lookup,
// paginated fetch, result validation and cache write-back behind a
// single call.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ledgerline/netsuite-restlet-client/pkg/cache"
	"github.com/ledgerline/netsuite-restlet-client/pkg/filter"
	"github.com/ledgerline/netsuite-restlet-client/pkg/pagination"
)

// Aggregator fetches and assembles every page of a saved search.
// *pagination.Orchestrator implements it.
type Aggregator interface {
	FetchAll(ctx context.Context, searchID string, params url.Values) (*pagination.AggregatedResult, error)
}

// Options adjust a single retrieval.
type Options struct {
	// BypassCache forces a fresh fetch. The fresh result still
	// replaces the cached one.
	BypassCache bool

	// CacheTTL overrides the cache manager's default freshness
	// window for the entry written by this retrieval. Zero keeps
	// the default. Scheduled snapshot runs use a longer window
	// here so overnight data survives until the next refresh.
	CacheTTL time.Duration
}

// Retriever coordinates cache and fetch for saved-search retrievals.
// A nil cache manager disables caching entirely.
type Retriever struct {
	aggregator Aggregator
	cache      *cache.Manager
	logger     zerolog.Logger
}

// New creates a retriever. cacheMgr may be nil.
func New(aggregator Aggregator, cacheMgr *cache.Manager) *Retriever {
	return &Retriever{
		aggregator: aggregator,
		cache:      cacheMgr,
		logger:     log.With().Str("component", "retrieval").Logger(),
	}
}

// Retrieve returns the full result set for a saved search with the
// given filters, from cache when fresh, otherwise fetched. Cache
// write failures are logged, never surfaced; the data is already in
// hand.
func (r *Retriever) Retrieve(ctx context.Context, searchID string, filters filter.Params, opts Options) (*pagination.AggregatedResult, error) {
	if searchID == "" {
		return nil, fmt.Errorf("search ID is required")
	}

	key := cache.Key{SearchID: searchID, Filters: filters}

	if r.cache != nil && !opts.BypassCache {
		result, err := r.cache.Get(ctx, key)
		if err == nil {
			r.logger.Info().
				Str("search_id", searchID).
				Int("rows", result.RowCount).
				Msg("Serving cached result")
			return result, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Msg("Cache lookup failed - fetching fresh")
		}
	}

	if filters.HasFilters() {
		r.logger.Info().
			Str("search_id", searchID).
			Str("filters", filters.Describe()).
			Msg("Fetching with filters")
	}

	result, err := r.aggregator.FetchAll(ctx, searchID, filters.QueryParams())
	if err != nil {
		return nil, err
	}

	r.validate(searchID, result)

	if r.cache != nil {
		if err := r.cache.SetWithTTL(ctx, key, result, opts.CacheTTL); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to cache result")
		}
	}

	return result, nil
}

// columnPatterns are the column name fragments a general-ledger
// search is expected to expose. Matching fewer than two suggests the
// wrong saved search was configured.
var columnPatterns = []string{"amount", "date", "account", "type"}

// validate sanity-checks a fetched result. Problems are logged as
// warnings; the data is still returned to the caller.
func (r *Retriever) validate(searchID string, result *pagination.AggregatedResult) {
	if result.RowCount == 0 {
		r.logger.Warn().
			Str("search_id", searchID).
			Msg("Search returned zero rows - check the saved search and filters")
		return
	}

	matched := 0
	for _, pattern := range columnPatterns {
		for _, col := range result.Columns {
			if strings.Contains(strings.ToLower(col), pattern) {
				matched++
				break
			}
		}
	}
	if matched < 2 {
		r.logger.Warn().
			Str("search_id", searchID).
			Strs("columns", result.Columns).
			Msg("Result columns do not look like transaction data - check the saved search")
	}
}
