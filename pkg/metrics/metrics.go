// Package metrics exposes the Prometheus registry used by the catalog
// packages. Collectors live next to the code they measure (client, cache,
// ratelimit, pagination, server) and register themselves through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where promauto collectors in this module are registered.
var Registry = prometheus.DefaultRegisterer

// Gatherer is read by Handler.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics reference
//
// Requests (pkg/client):
//   - kitsu_requests_total{endpoint, status}
//   - kitsu_request_duration_seconds{endpoint}
//   - kitsu_errors_total{class}: client, not_found, rate_limit, server, network, parse, invalid_query
//
// Rate limiting (pkg/ratelimit):
//   - kitsu_rate_limit_waits_total
//   - kitsu_rate_limit_blocks_total
//   - kitsu_rate_limit_backoff_seconds
//
// Cache (pkg/cache):
//   - kitsu_cache_hits_total{layer}
//   - kitsu_cache_misses_total
//   - kitsu_cache_written_bytes_total{layer}
//   - kitsu_conditional_requests_total
//   - kitsu_304_responses_total
//   - kitsu_cache_errors_total{operation}
//
// Collection loading (pkg/pagination):
//   - kitsu_loader_outcomes_total{kind, status}
//   - kitsu_loader_duplicates_total{kind}
//   - kitsu_loader_fetch_duration_seconds{kind}
//
// Sessions (internal/server):
//   - kitsu_ws_sessions_active
//   - kitsu_ws_events_total{type}
//
// Example queries:
//
//	# Share of page loads that failed
//	sum(rate(kitsu_loader_outcomes_total{status="failed"}[5m])) /
//	sum(rate(kitsu_loader_outcomes_total[5m]))
//
//	# Cache hit rate
//	sum(rate(kitsu_cache_hits_total[5m])) /
//	(sum(rate(kitsu_cache_hits_total[5m])) + sum(rate(kitsu_cache_misses_total[5m])))
//
//	# P95 upstream latency
//	histogram_quantile(0.95, rate(kitsu_request_duration_seconds_bucket[5m]))
