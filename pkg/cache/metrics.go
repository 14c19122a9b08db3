package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restlet_cache_hits_total",
			Help: "Total number of result cache hits",
		},
		[]string{"backend"}, // "disk", "redis"
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restlet_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	cacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restlet_cache_size_bytes",
			Help: "Bytes written to the result cache",
		},
		[]string{"backend"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restlet_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)
)
