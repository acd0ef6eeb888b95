package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var kitsuRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "kitsu_rate_limit_waits_total",
	Help: "Total number of requests delayed by the client-side token bucket",
})

// Limiter spaces out requests with a token bucket.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond requests per second with the given burst.
// perSecond <= 0 disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter.Allow() {
		return nil
	}

	kitsuRateLimitWaitsTotal.Inc()
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	return nil
}
