package restlet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ledgerline/netsuite-restlet-client/pkg/oauth"
)

// Prometheus metrics for RESTlet page fetches.
var (
	restletRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restlet_requests_total",
		Help: "Total RESTlet page requests by status",
	}, []string{"status"})

	restletRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restlet_request_duration_seconds",
		Help:    "RESTlet page request duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"status"})

	restletRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restlet_retries_total",
		Help: "Total page retry attempts by error class",
	}, []string{"error_class"})

	restletRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restlet_retry_backoff_seconds",
		Help:    "Backoff duration before page retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	restletRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restlet_retry_exhausted_total",
		Help: "Total pages that exhausted their retry budget by error class",
	}, []string{"error_class"})
)

// Config holds the page fetcher configuration.
type Config struct {
	// PageSize requested per page. The RESTlet caps this server-side.
	PageSize int

	// HTTPTimeout per page request. Saved searches can be slow, keep
	// this generous.
	HTTPTimeout time.Duration

	// MaxRetries is the default per-page retry budget.
	MaxRetries int

	// BackoffBase scales the exponential backoff curve
	// (base<<attempt plus class-dependent jitter).
	BackoffBase time.Duration
}

// DefaultConfig returns the fetcher defaults tuned for NetSuite's
// RESTlet rate limiter.
func DefaultConfig() Config {
	return Config{
		PageSize:    1000,
		HTTPTimeout: 120 * time.Second,
		MaxRetries:  3,
		BackoffBase: 1 * time.Second,
	}
}

// Outcome is the classified result of fetching one page. Err is nil on
// success.
type Outcome struct {
	Page int
	Rows []Row
	Err  *PageError
}

// Success reports whether the page was fetched.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Fetcher issues signed page requests against one RESTlet deployment
// and classifies the outcome. Safe for concurrent use; no shared state
// is mutated across calls.
type Fetcher struct {
	baseURL    *url.URL
	signURL    string
	signer     *oauth.Signer
	httpClient *http.Client
	cfg        Config
	logger     zerolog.Logger

	// sleep is replaced in tests to count backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher for the given RESTlet URL. The URL may
// carry deployment query parameters (script, deploy); they are folded
// into the signed parameter set of every request.
func NewFetcher(rawURL string, signer *oauth.Signer, cfg Config) (*Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse restlet url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("restlet url %q missing scheme or host", rawURL)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 1 * time.Second
	}

	signURL := *u
	signURL.RawQuery = ""
	signURL.Fragment = ""

	return &Fetcher{
		baseURL:    u,
		signURL:    signURL.String(),
		signer:     signer,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		logger:     log.With().Str("component", "restlet-fetcher").Logger(),
		sleep:      sleepContext,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// FetchFirst fetches page 0 and extracts the result metadata. Filter
// errors reported by the server abort with a *FilterFatalError.
func (f *Fetcher) FetchFirst(ctx context.Context, searchID string, params url.Values) (*Metadata, []Row, error) {
	resp, perr := f.fetch(ctx, searchID, params, 0, 0, f.cfg.MaxRetries)
	if perr != nil {
		return nil, nil, perr
	}

	meta, err := ProcessMetadata(f.logger, resp, searchID, 0)
	if err != nil {
		return nil, nil, err
	}
	return meta, resp.Results, nil
}

// FetchPage fetches one page. initialDelay is slept before the first
// attempt; the orchestrator uses it to space out sequential retries so
// concurrently issued signatures carry distinct timestamps. maxRetries
// bounds additional attempts after the first.
func (f *Fetcher) FetchPage(ctx context.Context, searchID string, params url.Values, page int, initialDelay time.Duration, maxRetries int) Outcome {
	resp, perr := f.fetch(ctx, searchID, params, page, initialDelay, maxRetries)
	if perr != nil {
		return Outcome{Page: page, Err: perr}
	}
	return Outcome{Page: page, Rows: resp.Results}
}

// fetch runs the per-page retry loop: sign fresh, request, classify,
// back off, repeat.
func (f *Fetcher) fetch(ctx context.Context, searchID string, params url.Values, page int, initialDelay time.Duration, maxRetries int) (*Response, *PageError) {
	if initialDelay > 0 {
		if err := f.sleep(ctx, initialDelay); err != nil {
			return nil, &PageError{Page: page, Class: ErrorClassFatal, Reason: "cancelled before first attempt", Err: err}
		}
	}

	var lastErr *PageError

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, perr := f.doRequest(ctx, searchID, params, page)
		if perr == nil {
			if attempt > 0 {
				f.logger.Info().
					Int("page", page).
					Int("attempt", attempt+1).
					Msg("Page fetch succeeded after retry")
			}
			return resp, nil
		}
		lastErr = perr

		if errors.Is(perr.Err, context.Canceled) || errors.Is(perr.Err, context.DeadlineExceeded) {
			return nil, perr
		}
		if !perr.Class.Retryable() {
			return nil, perr
		}
		if attempt >= maxRetries {
			break
		}

		restletRetriesTotal.WithLabelValues(string(perr.Class)).Inc()

		backoff := f.backoff(attempt, perr.Class)
		restletRetryBackoffSeconds.WithLabelValues(string(perr.Class)).Observe(backoff.Seconds())

		f.logger.Warn().
			Int("page", page).
			Int("attempt", attempt+1).
			Str("error_class", string(perr.Class)).
			Dur("backoff", backoff).
			Str("reason", perr.Reason).
			Msg("Retrying page after backoff")

		if err := f.sleep(ctx, backoff); err != nil {
			return nil, &PageError{Page: page, Class: ErrorClassFatal, Reason: "cancelled during backoff", Err: err}
		}
	}

	restletRetryExhaustedTotal.WithLabelValues(string(lastErr.Class)).Inc()
	f.logger.Error().
		Int("page", page).
		Int("max_attempts", maxRetries+1).
		Str("reason", lastErr.Reason).
		Msg("Page retry budget exhausted")

	return nil, &PageError{
		Page:   page,
		Status: lastErr.Status,
		Class:  lastErr.Class,
		Reason: lastErr.Reason,
		Err:    fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, maxRetries+1, lastErr.Err),
	}
}

// backoff computes base<<attempt plus class-dependent jitter. The
// jitter range desynchronizes retrying clients so they do not hammer
// the same rate limiter in lockstep.
func (f *Fetcher) backoff(attempt int, class ErrorClass) time.Duration {
	base := f.cfg.BackoffBase << uint(attempt)

	var minJitter, maxJitter float64
	if class == ErrorClassRateLimit {
		minJitter, maxJitter = 0.5, 2.0
	} else {
		minJitter, maxJitter = 0.1, 1.0
	}
	jitter := time.Duration((minJitter + rand.Float64()*(maxJitter-minJitter)) * float64(f.cfg.BackoffBase))

	return base + jitter
}

// doRequest performs a single signed attempt and classifies the result.
func (f *Fetcher) doRequest(ctx context.Context, searchID string, params url.Values, page int) (*Response, *PageError) {
	q := url.Values{}
	for k, vs := range f.baseURL.Query() {
		q[k] = vs
	}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("searchId", searchID)
	q.Set("pageSize", strconv.Itoa(f.cfg.PageSize))
	q.Set("page", strconv.Itoa(page))

	// Fresh timestamp/nonce per attempt; NetSuite rejects reused pairs
	// from concurrent calls as replayed logins.
	authHeader, err := f.signer.AuthorizationHeader(http.MethodGet, f.signURL, q)
	if err != nil {
		return nil, &PageError{Page: page, Class: ErrorClassAuth, Reason: "request signing failed", Err: err}
	}

	reqURL := *f.baseURL
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &PageError{Page: page, Class: ErrorClassFatal, Reason: "build request", Err: err}
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		restletRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &PageError{Page: page, Class: ErrorClassTransport, Reason: "http request failed", Err: err}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	restletRequestsTotal.WithLabelValues(status).Inc()
	restletRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PageError{Page: page, Status: resp.StatusCode, Class: ErrorClassTransport, Reason: "read response body", Err: err}
	}

	return classify(page, resp.StatusCode, body)
}

// classify maps one HTTP response to a parsed envelope or a PageError.
func classify(page, status int, body []byte) (*Response, *PageError) {
	switch {
	case status == http.StatusOK:
		var envelope Response
		if err := json.Unmarshal(body, &envelope); err != nil {
			// Could be a truncated response from a overloaded server;
			// worth retrying before giving up.
			return nil, &PageError{Page: page, Status: status, Class: ErrorClassTransport, Reason: "malformed envelope", Err: err}
		}
		if envelope.Success {
			return &envelope, nil
		}
		if isRateLimitMessage(envelope.Error) {
			return nil, &PageError{Page: page, Status: status, Class: ErrorClassRateLimit, Reason: envelope.Error}
		}
		return nil, &PageError{Page: page, Status: status, Class: ErrorClassFatal, Reason: envelope.Error}

	case status == http.StatusUnauthorized:
		return nil, &PageError{Page: page, Status: status, Class: ErrorClassAuth, Reason: "authentication rejected"}

	case status == http.StatusTooManyRequests:
		return nil, &PageError{Page: page, Status: status, Class: ErrorClassRateLimit, Reason: "http 429"}

	case status == http.StatusForbidden, status == http.StatusBadRequest, status >= 500:
		// NetSuite surfaces burst rejections as 403/400 as well.
		return nil, &PageError{Page: page, Status: status, Class: ErrorClassTransport, Reason: "http " + strconv.Itoa(status)}

	default:
		return nil, &PageError{Page: page, Status: status, Class: ErrorClassFatal, Reason: "unexpected http status " + strconv.Itoa(status)}
	}
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
