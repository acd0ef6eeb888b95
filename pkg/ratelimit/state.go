// Package ratelimit implements client-side request pacing and upstream
// backoff tracking for the Kitsu API. A token bucket spaces out requests,
// and the Tracker honours 429 Too Many Requests + Retry-After by blocking
// further requests until the upstream window has passed.
package ratelimit

import (
	"time"
)

// Redis keys for shared backoff state.
const (
	RedisKeyBlockedUntil = "kitsu:rate_limit:blocked_until"
)

// Backoff bounds.
const (
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter = 30 * time.Second

	// MaxRetryAfter caps the block window so a bogus header cannot stall the client.
	MaxRetryAfter = 10 * time.Minute
)

// BackoffState represents the current upstream backoff window.
// It may be shared across processes via Redis.
type BackoffState struct {
	// BlockedUntil is when requests may resume. Zero means not blocked.
	BlockedUntil time.Time `json:"blocked_until"`

	// Reason describes what caused the block (e.g. "429").
	Reason string `json:"reason,omitempty"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked returns true while the backoff window is open.
func (s *BackoffState) IsBlocked() bool {
	return s != nil && time.Now().Before(s.BlockedUntil)
}

// TimeUntilReset returns the remaining backoff duration.
// Returns 0 if not blocked.
func (s *BackoffState) TimeUntilReset() time.Duration {
	if s == nil {
		return 0
	}
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state is older than maxAge.
func (s *BackoffState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
