package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks responses served without contacting Kitsu, by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitsu_cache_hits_total",
			Help: "Total number of Kitsu responses served from cache",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks requests with no usable cache entry
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitsu_cache_misses_total",
			Help: "Total number of Kitsu cache misses",
		},
	)

	// CacheWrittenBytes tracks the volume of entries written
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitsu_cache_written_bytes_total",
			Help: "Total bytes of cache entries written, by layer",
		},
		[]string{"layer"}, // "redis"
	)

	// ConditionalRequestsSent tracks revalidations of stale entries
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitsu_conditional_requests_total",
			Help: "Total number of conditional requests sent to Kitsu",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitsu_304_responses_total",
			Help: "Total number of Kitsu 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitsu_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "encode"
	)
)
