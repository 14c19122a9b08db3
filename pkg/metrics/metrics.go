// Package metrics provides the centralized Prometheus metrics registry
// for the RESTlet client. All metrics are defined in their respective
// packages (restlet, ratelimit, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/restlet):
//   - restlet_requests_total{status} (Counter): Total requests by HTTP status
//   - restlet_request_duration_seconds (Histogram): Request duration
//
// Retry Metrics (pkg/restlet):
//   - restlet_retries_total{error_class} (Counter): Retry attempts by error class
//   - restlet_retry_backoff_seconds (Histogram): Backoff durations slept
//   - restlet_retry_exhausted_total (Counter): Pages that exhausted their retry budget
//
// Pacing Metrics (pkg/ratelimit):
//   - restlet_pacer_wait_seconds (Histogram): Time spent waiting for a submission slot
//
// Cache Metrics (pkg/cache):
//   - restlet_cache_hits_total{backend} (Counter): Cache hits by backend (disk, redis)
//   - restlet_cache_misses_total (Counter): Cache misses
//   - restlet_cache_size_bytes{backend} (Gauge): Bytes written to the cache
//   - restlet_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(restlet_cache_hits_total[5m])) /
//   (sum(rate(restlet_cache_hits_total[5m])) + sum(rate(restlet_cache_misses_total[5m])))
//
//   # Rate-Limit Pressure
//   rate(restlet_retries_total{error_class="rate_limit"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(restlet_request_duration_seconds_bucket[5m]))
//
//   # Pages Lost to Retry Exhaustion
//   rate(restlet_retry_exhausted_total[5m])
