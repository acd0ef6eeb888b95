package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Backend stores cache entries. *Manager is the Redis implementation.
type Backend interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, entry *Entry) error
}

// X-Cache values set on responses passing through the transport.
const (
	StatusHit         = "HIT"
	StatusRevalidated = "REVALIDATED"
	StatusMiss        = "MISS"
)

// Transport is an http.RoundTripper that serves fresh GET responses from
// the backend and revalidates stale ones. Backend failures are logged and
// the request goes to the network uncached.
type Transport struct {
	base    http.RoundTripper
	backend Backend
	logger  zerolog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil) with a cache.
func NewTransport(backend Backend, base http.RoundTripper, logger zerolog.Logger) *Transport {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		backend: backend,
		logger:  logger.With().Str("component", "kitsu-cache").Logger(),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Callers doing their own revalidation bypass the cache.
	if req.Method != http.MethodGet ||
		req.Header.Get("If-None-Match") != "" ||
		req.Header.Get("If-Modified-Since") != "" {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	key := KeyFromRequest(req)

	entry, err := t.backend.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		t.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}

	if entry != nil && !entry.IsExpired() {
		CacheHits.WithLabelValues("redis").Inc()
		t.logger.Debug().Str("key", key.String()).Dur("ttl", entry.TTL()).Msg("Cache hit")
		return EntryToResponse(entry, req, StatusHit), nil
	}

	outReq := req
	if ShouldMakeConditionalRequest(entry) {
		outReq = req.Clone(ctx)
		AddConditionalHeaders(outReq, entry)
		ConditionalRequestsSent.Inc()
		t.logger.Debug().
			Str("key", key.String()).
			Str("etag", entry.ETag).
			Msg("Making conditional request")
	} else {
		entry = nil
		CacheMisses.Inc()
	}

	resp, err := t.base.RoundTrip(outReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && entry != nil {
		NotModifiedResponses.Inc()
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		entry.Expires = freshUntil(resp.Header, time.Now())
		if err := t.backend.Set(ctx, key, entry); err != nil {
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to refresh cache entry")
		}
		t.logger.Debug().Str("key", key.String()).Msg("304 Not Modified - using cache")
		return EntryToResponse(entry, req, StatusRevalidated), nil
	}

	if IsCacheable(req, resp) {
		fresh, err := ResponseToEntry(resp)
		if err != nil {
			CacheErrors.WithLabelValues("encode").Inc()
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to read response for caching")
		} else if err := t.backend.Set(ctx, key, fresh); err != nil {
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
		}
	}

	resp.Header.Set("X-Cache", StatusMiss)
	return resp, nil
}
