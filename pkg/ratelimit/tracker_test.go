package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTracker_DefaultStateAllows(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsBlocked() {
		t.Error("default state should not be blocked")
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("request should be allowed with no recorded backoff")
	}
}

func TestTracker_UpdateFromResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		retryAfter  string
		wantBlocked bool
		wantWait    time.Duration
	}{
		{
			name:        "200 ignored",
			status:      http.StatusOK,
			retryAfter:  "60",
			wantBlocked: false,
		},
		{
			name:        "503 ignored",
			status:      http.StatusServiceUnavailable,
			retryAfter:  "60",
			wantBlocked: false,
		},
		{
			name:        "429 with seconds",
			status:      http.StatusTooManyRequests,
			retryAfter:  "45",
			wantBlocked: true,
			wantWait:    45 * time.Second,
		},
		{
			name:        "429 without header",
			status:      http.StatusTooManyRequests,
			wantBlocked: true,
			wantWait:    DefaultRetryAfter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(NewMemoryStore(), zerolog.Nop())
			ctx := context.Background()

			headers := http.Header{}
			if tt.retryAfter != "" {
				headers.Set("Retry-After", tt.retryAfter)
			}

			if err := tracker.UpdateFromResponse(ctx, tt.status, headers); err != nil {
				t.Fatalf("UpdateFromResponse() error = %v", err)
			}

			allowed, err := tracker.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed == tt.wantBlocked {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, !tt.wantBlocked)
			}

			if !tt.wantBlocked {
				return
			}
			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			tolerance := 2 * time.Second
			if got := state.TimeUntilReset(); got > tt.wantWait || got < tt.wantWait-tolerance {
				t.Errorf("TimeUntilReset() = %v, want ~%v", got, tt.wantWait)
			}
			if state.Reason != "429" {
				t.Errorf("Reason = %q, want 429", state.Reason)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty", value: "", want: DefaultRetryAfter},
		{name: "seconds", value: "12", want: 12 * time.Second},
		{name: "zero seconds", value: "0", want: time.Second},
		{name: "huge", value: "86400", want: MaxRetryAfter},
		{name: "http date", value: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past date", value: now.Add(-time.Hour).Format(http.TimeFormat), want: time.Second},
		{name: "garbage", value: "soon", want: DefaultRetryAfter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestMemoryStore_CopiesState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := &BackoffState{Reason: "429"}
	if err := store.Save(ctx, state, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	state.Reason = "mutated"

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Reason != "429" {
		t.Errorf("Reason = %q, want stored copy", loaded.Reason)
	}
}

func TestLimiter_Wait(t *testing.T) {
	unlimited := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if err := unlimited.Wait(context.Background()); err != nil {
			t.Fatalf("unlimited Wait() error = %v", err)
		}
	}

	limited := NewLimiter(0.001, 1)
	if err := limited.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limited.Wait(ctx); err == nil {
		t.Error("second Wait() should fail once the context cannot cover the delay")
	}
}
