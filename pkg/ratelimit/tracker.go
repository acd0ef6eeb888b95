package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream backoff tracking.
var (
	kitsuRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitsu_rate_limit_blocks_total",
		Help: "Total number of requests refused while the upstream backoff window was open",
	})

	kitsuRateLimitBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kitsu_rate_limit_backoff_seconds",
		Help:    "Backoff windows requested by the upstream via Retry-After",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 600},
	})
)

// Tracker records upstream 429 responses and gates requests while the
// Retry-After window is open.
type Tracker struct {
	store  StateStore
	logger zerolog.Logger
}

// NewTracker creates a tracker. A nil store defaults to an in-process MemoryStore.
func NewTracker(store StateStore, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// GetState returns the current backoff state. A missing state is reported as
// an empty (unblocked) state.
func (t *Tracker) GetState(ctx context.Context) (*BackoffState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backoff state: %w", err)
	}
	if state == nil {
		t.logger.Debug().Msg("No backoff state recorded, requests allowed")
		return &BackoffState{}, nil
	}
	return state, nil
}

// UpdateFromResponse opens a backoff window when the upstream answered 429.
// Other statuses are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests {
		return nil
	}

	wait := parseRetryAfter(headers.Get("Retry-After"), time.Now())
	now := time.Now()
	state := &BackoffState{
		BlockedUntil: now.Add(wait),
		Reason:       strconv.Itoa(statusCode),
		LastUpdate:   now,
	}

	if err := t.store.Save(ctx, state, wait); err != nil {
		return fmt.Errorf("store backoff state: %w", err)
	}

	kitsuRateLimitBackoffSeconds.Observe(wait.Seconds())
	t.logger.Warn().
		Dur("retry_after", wait).
		Time("blocked_until", state.BlockedUntil).
		Msg("Kitsu rate limit hit - backing off")

	return nil
}

// ShouldAllowRequest returns false while the backoff window is open.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get backoff state: %w", err)
	}

	if state.IsBlocked() {
		t.logger.Warn().
			Dur("wait_duration", state.TimeUntilReset()).
			Str("reason", state.Reason).
			Msg("Kitsu backoff active - blocking request")
		kitsuRateLimitBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date and clamps the
// result to (0, MaxRetryAfter].
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}

	var wait time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		wait = at.Sub(now)
	} else {
		return DefaultRetryAfter
	}

	switch {
	case wait <= 0:
		return time.Second
	case wait > MaxRetryAfter:
		return MaxRetryAfter
	default:
		return wait
	}
}
