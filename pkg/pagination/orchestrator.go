// Package pagination schedules parallel page fetches for one saved
// search: page 0 first for metadata, remaining pages in bounded waves,
// a sequential retry pass for stragglers, and strict page-index
// assembly.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ledgerline/netsuite-restlet-client/pkg/ratelimit"
	"github.com/ledgerline/netsuite-restlet-client/pkg/restlet"
)

// PageFetcher is the single-page interface the orchestrator schedules
// over. *restlet.Fetcher implements it.
type PageFetcher interface {
	FetchFirst(ctx context.Context, searchID string, params url.Values) (*restlet.Metadata, []restlet.Row, error)
	FetchPage(ctx context.Context, searchID string, params url.Values, page int, initialDelay time.Duration, maxRetries int) restlet.Outcome
}

// Config holds the orchestrator configuration.
type Config struct {
	// MaxWorkers bounds one wave. Kept deliberately small; the RESTlet
	// OAuth validation degrades under high concurrency.
	MaxWorkers int

	// MinParallelPages is the page count below which the simpler
	// sequential path is used.
	MinParallelPages int

	// IntraWaveDelay spaces submissions within a wave so signatures
	// carry distinct timestamps.
	IntraWaveDelay time.Duration

	// InterWaveDelay lets the remote rate limiter recover between
	// waves.
	InterWaveDelay time.Duration

	// WaveRetries is the per-page retry budget inside a wave.
	WaveRetries int

	// FinalRetries is the larger budget of the sequential retry pass.
	FinalRetries int

	// FinalRetryDelay is slept before each page of the retry pass.
	FinalRetryDelay time.Duration
}

// DefaultConfig returns scheduling defaults tuned for NetSuite's
// concurrency tolerance.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:       5,
		MinParallelPages: 3,
		IntraWaveDelay:   300 * time.Millisecond,
		InterWaveDelay:   2 * time.Second,
		WaveRetries:      2,
		FinalRetries:     4,
		FinalRetryDelay:  5 * time.Second,
	}
}

// EnvironmentalError marks a failure of the parallel machinery itself
// rather than of any page. Only this variant triggers the sequential
// fallback; page-level failures never do.
type EnvironmentalError struct {
	Err error
}

func (e *EnvironmentalError) Error() string {
	return fmt.Sprintf("parallel fetch environment failure: %v", e.Err)
}

func (e *EnvironmentalError) Unwrap() error {
	return e.Err
}

// Orchestrator coordinates the full multi-page retrieval for one
// request. Safe for concurrent use across independent retrievals.
type Orchestrator struct {
	fetcher PageFetcher
	pacer   *ratelimit.Pacer
	cfg     Config
	logger  zerolog.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator over the given page fetcher.
func NewOrchestrator(fetcher PageFetcher, cfg Config) *Orchestrator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.MinParallelPages <= 0 {
		cfg.MinParallelPages = 3
	}
	if cfg.WaveRetries < 0 {
		cfg.WaveRetries = 2
	}
	if cfg.FinalRetries < 0 {
		cfg.FinalRetries = 4
	}

	return &Orchestrator{
		fetcher: fetcher,
		pacer:   ratelimit.NewPacer(cfg.IntraWaveDelay),
		cfg:     cfg,
		logger:  log.With().Str("component", "orchestrator").Logger(),
		sleep:   sleepContext,
	}
}

// FetchAll retrieves every page of the search and assembles the rows
// in page-index order. Either all pages succeed or an error naming the
// failing page is returned; partial data is never silently dropped.
func (o *Orchestrator) FetchAll(ctx context.Context, searchID string, params url.Values) (*AggregatedResult, error) {
	start := time.Now()

	meta, firstRows, err := o.fetcher.FetchFirst(ctx, searchID, params)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages := meta.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	o.logger.Info().
		Str("search_id", searchID).
		Int("total_pages", totalPages).
		Int("total_results", meta.TotalResults).
		Msg("Starting paginated fetch")

	results := map[int][]restlet.Row{0: firstRows}

	switch {
	case totalPages == 1:
		// Single page, nothing to schedule.

	case totalPages < o.cfg.MinParallelPages:
		if err := o.fetchSequential(ctx, searchID, params, results, totalPages); err != nil {
			return nil, err
		}

	default:
		err := o.fetchParallel(ctx, searchID, params, results, totalPages)
		var envErr *EnvironmentalError
		if errors.As(err, &envErr) {
			o.logger.Warn().
				Err(envErr.Err).
				Msg("Parallel fetch environment failure - falling back to sequential fetch")
			if err := o.fetchSequential(ctx, searchID, params, results, totalPages); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}

	result, err := assemble(searchID, meta, results, totalPages, time.Since(start))
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("search_id", searchID).
		Int("pages", totalPages).
		Int("rows", result.RowCount).
		Dur("duration", result.Duration).
		Msg("Fetch complete")

	return result, nil
}

// fetchParallel schedules pages [1, totalPages) in waves of MaxWorkers
// and runs the sequential retry pass for pages that exhausted their
// in-wave budget.
func (o *Orchestrator) fetchParallel(ctx context.Context, searchID string, params url.Values, results map[int][]restlet.Row, totalPages int) error {
	var (
		mu     sync.Mutex
		failed []restlet.Outcome
		envErr error
	)

	for waveStart := 1; waveStart < totalPages; waveStart += o.cfg.MaxWorkers {
		waveEnd := waveStart + o.cfg.MaxWorkers
		if waveEnd > totalPages {
			waveEnd = totalPages
		}
		wavePages := waveEnd - waveStart

		o.logger.Debug().
			Int("wave_start", waveStart).
			Int("wave_end", waveEnd-1).
			Msg("Dispatching wave")

		outcomes := make([]restlet.Outcome, wavePages)
		var wg sync.WaitGroup

		for i := 0; i < wavePages; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						mu.Lock()
						if envErr == nil {
							envErr = fmt.Errorf("worker panic: %v", r)
						}
						mu.Unlock()
					}
				}()

				page := waveStart + i

				// The pacer spaces submissions so each worker signs
				// with a distinct timestamp.
				if err := o.pacer.Wait(ctx); err != nil {
					outcomes[i] = restlet.Outcome{
						Page: page,
						Err:  &restlet.PageError{Page: page, Class: restlet.ErrorClassFatal, Reason: "cancelled awaiting submission slot", Err: err},
					}
					return
				}

				// Each task owns its outcome slot exclusively.
				outcomes[i] = o.fetcher.FetchPage(ctx, searchID, params, page, 0, o.cfg.WaveRetries)
			}(i)
		}
		wg.Wait()

		if envErr != nil {
			return &EnvironmentalError{Err: envErr}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fetch cancelled: %w", err)
		}

		for _, outcome := range outcomes {
			if outcome.Success() {
				results[outcome.Page] = outcome.Rows
			} else {
				o.logger.Warn().
					Int("page", outcome.Page).
					Str("error_class", string(outcome.Err.Class)).
					Str("reason", outcome.Err.Reason).
					Msg("Page failed in wave")
				failed = append(failed, outcome)
			}
		}

		if waveEnd < totalPages && o.cfg.InterWaveDelay > 0 {
			if err := o.sleep(ctx, o.cfg.InterWaveDelay); err != nil {
				return fmt.Errorf("fetch cancelled between waves: %w", err)
			}
		}
	}

	return o.retryFailed(ctx, searchID, params, results, failed)
}

// retryFailed gives each failed page one more sequential attempt with
// a longer fixed delay and a larger retry budget. A page failing this
// pass fails the whole retrieval.
func (o *Orchestrator) retryFailed(ctx context.Context, searchID string, params url.Values, results map[int][]restlet.Row, failed []restlet.Outcome) error {
	if len(failed) == 0 {
		return nil
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i].Page < failed[j].Page })

	o.logger.Warn().
		Int("pages", len(failed)).
		Msg("Entering sequential retry pass for failed pages")

	for _, prior := range failed {
		outcome := o.fetcher.FetchPage(ctx, searchID, params, prior.Page, o.cfg.FinalRetryDelay, o.cfg.FinalRetries)
		if !outcome.Success() {
			return fmt.Errorf("page %d failed after sequential retry pass (first failure: %s): %w",
				prior.Page, prior.Err.Reason, outcome.Err)
		}
		results[outcome.Page] = outcome.Rows
	}

	return nil
}

// fetchSequential retrieves pages [1, totalPages) one at a time, paced
// by the same submission limiter.
func (o *Orchestrator) fetchSequential(ctx context.Context, searchID string, params url.Values, results map[int][]restlet.Row, totalPages int) error {
	o.logger.Info().
		Int("pages", totalPages-1).
		Msg("Fetching remaining pages sequentially")

	for page := 1; page < totalPages; page++ {
		if _, done := results[page]; done {
			continue
		}
		if err := o.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("fetch cancelled: %w", err)
		}
		outcome := o.fetcher.FetchPage(ctx, searchID, params, page, 0, o.cfg.FinalRetries)
		if !outcome.Success() {
			return fmt.Errorf("sequential fetch: %w", outcome.Err)
		}
		results[page] = outcome.Rows
	}
	return nil
}

// assemble concatenates per-page rows in strict page-index order.
func assemble(searchID string, meta *restlet.Metadata, results map[int][]restlet.Row, totalPages int, duration time.Duration) (*AggregatedResult, error) {
	var rows []restlet.Row
	for page := 0; page < totalPages; page++ {
		pageRows, ok := results[page]
		if !ok {
			return nil, fmt.Errorf("page %d missing from results", page)
		}
		rows = append(rows, pageRows...)
	}

	if meta.TotalResults > 0 && len(rows) != meta.TotalResults {
		log.Warn().
			Str("search_id", searchID).
			Int("rows", len(rows)).
			Int("total_results", meta.TotalResults).
			Msg("Row count differs from server-reported total")
	}

	return &AggregatedResult{
		Rows:        rows,
		Columns:     meta.Columns,
		RowCount:    len(rows),
		Duration:    duration,
		SourceID:    searchID,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
