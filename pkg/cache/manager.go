package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ledgerline/netsuite-restlet-client/pkg/pagination"
)

var (
	// ErrCacheMiss indicates the key was absent, expired or unreadable.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored bytes could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL matches the freshness window financial reporting runs
// tolerate between refreshes.
const DefaultTTL = 15 * time.Minute

// Manager layers TTL expiry and entry validation over a Store. A
// corrupt or expired entry reads as a miss, never as an error: cache
// trouble must degrade to a refetch, not fail the retrieval.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger

	// now is replaced in tests.
	now func() time.Time
}

// NewManager creates a cache manager. A non-positive ttl selects
// DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: log.With().Str("component", "cache").Logger(),
		now:    time.Now,
	}
}

// TTL returns the configured freshness window.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Get returns the cached result for the key, or ErrCacheMiss if the
// entry is absent, expired or corrupt.
func (m *Manager) Get(ctx context.Context, key Key) (*pagination.AggregatedResult, error) {
	data, err := m.store.Get(ctx, key.Hash())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Result == nil {
		if err == nil {
			err = ErrInvalidEntry
		}
		m.logger.Warn().
			Str("key", key.String()).
			Err(err).
			Msg("Discarding corrupt cache entry")
		_ = m.store.Delete(ctx, key.Hash())
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	if entry.Expired(m.ttl, m.now()) {
		_ = m.store.Delete(ctx, key.Hash())
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues(m.store.Name()).Inc()
	m.logger.Debug().
		Str("search_id", key.SearchID).
		Int("rows", entry.Result.RowCount).
		Time("cached_at", entry.CachedAt).
		Msg("Cache hit")

	return entry.Result, nil
}

// Set stores a result under the key with the default TTL. Storage
// failures are returned but callers treat them as best-effort.
func (m *Manager) Set(ctx context.Context, key Key, result *pagination.AggregatedResult) error {
	return m.SetWithTTL(ctx, key, result, 0)
}

// SetWithTTL stores a result with a custom freshness window. Scheduled
// snapshot jobs use a longer TTL than interactive retrievals; zero
// means the manager default.
func (m *Manager) SetWithTTL(ctx context.Context, key Key, result *pagination.AggregatedResult, ttl time.Duration) error {
	if result == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	entry := Entry{
		SearchID:      key.SearchID,
		FilterSummary: key.Filters.Describe(),
		Result:        result,
		CachedAt:      m.now(),
		TTL:           ttl,
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	effectiveTTL := ttl
	if effectiveTTL <= 0 {
		effectiveTTL = m.ttl
	}
	if err := m.store.Set(ctx, key.Hash(), data, effectiveTTL); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("cache set: %w", err)
	}

	cacheSize.WithLabelValues(m.store.Name()).Add(float64(len(data)))
	return nil
}

// Delete removes the entry for the key.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.store.Delete(ctx, key.Hash()); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// EntryInfo describes one cached retrieval for listings.
type EntryInfo struct {
	Key           string    `json:"key"`
	SearchID      string    `json:"search_id"`
	FilterSummary string    `json:"filter_summary"`
	RowCount      int       `json:"row_count"`
	CachedAt      time.Time `json:"cached_at"`
	Expired       bool      `json:"expired"`
}

// List describes every stored entry, including expired ones.
// Undecodable entries are skipped.
func (m *Manager) List(ctx context.Context) ([]EntryInfo, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}

	infos := make([]EntryInfo, 0, len(keys))
	for _, key := range keys {
		data, err := m.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		info := EntryInfo{
			Key:           key,
			SearchID:      entry.SearchID,
			FilterSummary: entry.FilterSummary,
			CachedAt:      entry.CachedAt,
			Expired:       entry.Expired(m.ttl, m.now()),
		}
		if entry.Result != nil {
			info.RowCount = entry.Result.RowCount
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Clear removes every entry and returns how many were removed.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	removed, err := m.store.Clear(ctx)
	if err != nil {
		cacheErrors.WithLabelValues("clear").Inc()
		return removed, fmt.Errorf("cache clear: %w", err)
	}
	m.logger.Info().Int("removed", removed).Msg("Cache cleared")
	return removed, nil
}
