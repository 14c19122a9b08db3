package retrieval

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ledgerline/netsuite-restlet-client/pkg/cache"
	"github.com/ledgerline/netsuite-restlet-client/pkg/filter"
	"github.com/ledgerline/netsuite-restlet-client/pkg/pagination"
	"github.com/ledgerline/netsuite-restlet-client/pkg/restlet"
)

type fakeAggregator struct {
	result *pagination.AggregatedResult
	err    error
	calls  int
	params url.Values
}

func (f *fakeAggregator) FetchAll(ctx context.Context, searchID string, params url.Values) (*pagination.AggregatedResult, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func glResult(rows int) *pagination.AggregatedResult {
	r := &pagination.AggregatedResult{
		Columns:     []string{"trandate", "amount", "account", "type"},
		SourceID:    "customsearch_gl",
		RetrievedAt: time.Now().UTC(),
	}
	for i := 0; i < rows; i++ {
		r.Rows = append(r.Rows, restlet.Row{"amount": float64(i)})
	}
	r.RowCount = len(r.Rows)
	return r
}

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	store, err := cache.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	return cache.NewManager(store, time.Minute)
}

func TestRetrieve_FetchesAndCaches(t *testing.T) {
	agg := &fakeAggregator{result: glResult(5)}
	r := New(agg, newTestCache(t))
	ctx := context.Background()

	result, err := r.Retrieve(ctx, "customsearch_gl", filter.Params{}, Options{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if result.RowCount != 5 {
		t.Errorf("RowCount = %d, want 5", result.RowCount)
	}
	if agg.calls != 1 {
		t.Errorf("aggregator called %d times, want 1", agg.calls)
	}

	// Second retrieval is served from cache.
	result, err = r.Retrieve(ctx, "customsearch_gl", filter.Params{}, Options{})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if result.RowCount != 5 {
		t.Errorf("cached RowCount = %d, want 5", result.RowCount)
	}
	if agg.calls != 1 {
		t.Errorf("aggregator called %d times after cache hit, want 1", agg.calls)
	}
}

func TestRetrieve_BypassCacheRefetches(t *testing.T) {
	agg := &fakeAggregator{result: glResult(2)}
	r := New(agg, newTestCache(t))
	ctx := context.Background()

	if _, err := r.Retrieve(ctx, "s", filter.Params{}, Options{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if _, err := r.Retrieve(ctx, "s", filter.Params{}, Options{BypassCache: true}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if agg.calls != 2 {
		t.Errorf("aggregator called %d times, want 2", agg.calls)
	}
}

func TestRetrieve_DifferentFiltersFetchSeparately(t *testing.T) {
	agg := &fakeAggregator{result: glResult(1)}
	r := New(agg, newTestCache(t))
	ctx := context.Background()

	sales := filter.Params{Departments: []string{"Sales"}}
	marketing := filter.Params{Departments: []string{"Marketing"}}

	if _, err := r.Retrieve(ctx, "s", sales, Options{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if _, err := r.Retrieve(ctx, "s", marketing, Options{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if agg.calls != 2 {
		t.Errorf("aggregator called %d times, want 2", agg.calls)
	}
}

func TestRetrieve_NilCacheAlwaysFetches(t *testing.T) {
	agg := &fakeAggregator{result: glResult(1)}
	r := New(agg, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Retrieve(ctx, "s", filter.Params{}, Options{}); err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
	}
	if agg.calls != 3 {
		t.Errorf("aggregator called %d times, want 3", agg.calls)
	}
}

func TestRetrieve_FiltersPassedAsQueryParams(t *testing.T) {
	agg := &fakeAggregator{result: glResult(1)}
	r := New(agg, nil)

	filters := filter.Params{
		Departments: []string{"Sales", "Marketing"},
		StartDate:   "01/01/2025",
		EndDate:     "03/31/2025",
	}
	if _, err := r.Retrieve(context.Background(), "s", filters, Options{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if got := agg.params.Get("department"); got != "Sales,Marketing" {
		t.Errorf("department = %q", got)
	}
	if got := agg.params.Get("startDate"); got != "01/01/2025" {
		t.Errorf("startDate = %q", got)
	}
}

func TestRetrieve_SnapshotTTLOutlivesDefault(t *testing.T) {
	store, err := cache.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	agg := &fakeAggregator{result: glResult(1)}
	r := New(agg, cache.NewManager(store, 30*time.Millisecond))
	ctx := context.Background()

	if _, err := r.Retrieve(ctx, "s", filter.Params{}, Options{CacheTTL: time.Minute}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// Past the manager's default TTL; the snapshot window keeps the
	// entry fresh.
	time.Sleep(60 * time.Millisecond)
	if _, err := r.Retrieve(ctx, "s", filter.Params{}, Options{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if agg.calls != 1 {
		t.Errorf("aggregator called %d times, want 1 (snapshot entry should still be fresh)", agg.calls)
	}
}

func TestRetrieve_FetchErrorPropagates(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("page 3 failed")}
	r := New(agg, newTestCache(t))

	_, err := r.Retrieve(context.Background(), "s", filter.Params{}, Options{})
	if err == nil || !strings.Contains(err.Error(), "page 3") {
		t.Errorf("expected fetch error, got %v", err)
	}
}

func TestRetrieve_EmptySearchIDRejected(t *testing.T) {
	r := New(&fakeAggregator{result: glResult(1)}, nil)
	if _, err := r.Retrieve(context.Background(), "", filter.Params{}, Options{}); err == nil {
		t.Error("expected error for empty search ID")
	}
}

func TestRetrieve_ZeroRowsWarns(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	agg := &fakeAggregator{result: glResult(0)}
	r := New(agg, nil)

	result, err := r.Retrieve(context.Background(), "s", filter.Params{}, Options{})
	if err != nil {
		t.Fatalf("zero rows must not fail: %v", err)
	}
	if result.RowCount != 0 {
		t.Errorf("RowCount = %d", result.RowCount)
	}
	if !strings.Contains(buf.String(), "zero rows") {
		t.Errorf("expected zero-row warning, got %s", buf.String())
	}
}

func TestRetrieve_UnexpectedColumnsWarn(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	result := &pagination.AggregatedResult{
		Columns:  []string{"internalid", "memo"},
		Rows:     []restlet.Row{{"memo": "x"}},
		RowCount: 1,
	}
	r := New(&fakeAggregator{result: result}, nil)

	if _, err := r.Retrieve(context.Background(), "s", filter.Params{}, Options{}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !strings.Contains(buf.String(), "do not look like transaction data") {
		t.Errorf("expected column warning, got %s", buf.String())
	}
}
