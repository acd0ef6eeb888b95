// Package cache provides an HTTP response cache for Kitsu requests with a
// Redis backend.
//
// The cache is optional and sits below the catalog client as an
// http.RoundTripper, so paging semantics never depend on it:
//
//   - Freshness from Cache-Control max-age, then Expires, then DefaultTTL
//   - ETag and Last-Modified revalidation of stale entries (If-None-Match)
//   - Stale entries are kept for a retention window so they can be revalidated
//   - Redis failures degrade to uncached requests
//   - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	transport := cache.NewTransport(cache.NewManager(redisClient), nil, logger)
//
//	cfg := client.DefaultConfig("MyApp/1.0 (me@example.com)")
//	cfg.Transport = transport
//	c, err := client.New(cfg)
//
// # Metrics
//
//   - kitsu_cache_hits_total{layer="redis"} - Responses served from cache
//   - kitsu_cache_misses_total - Requests without a usable entry
//   - kitsu_cache_written_bytes_total{layer="redis"} - Bytes written
//   - kitsu_conditional_requests_total - Revalidations sent
//   - kitsu_304_responses_total - Revalidations answered 304
//   - kitsu_cache_errors_total{operation} - Cache operation errors
package cache
