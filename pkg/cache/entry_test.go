package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "stale entry",
			expires: time.Now().Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "fresh entry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "max-age zero",
			expires: time.Now(),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Expires: tt.expires,
			}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "one hour remaining",
			expires: time.Now().Add(1 * time.Hour),
			wantMin: 59 * time.Minute,
			wantMax: 61 * time.Minute,
		},
		{
			name:    "already stale",
			expires: time.Now().Add(-1 * time.Hour),
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Expires: tt.expires,
			}
			got := entry.TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestEntry_CanRevalidate(t *testing.T) {
	var nilEntry *Entry
	if nilEntry.CanRevalidate() {
		t.Error("nil entry cannot revalidate")
	}
	if (&Entry{}).CanRevalidate() {
		t.Error("entry without validators cannot revalidate")
	}
	if !(&Entry{ETag: `W/"abc"`}).CanRevalidate() {
		t.Error("entry with ETag should revalidate")
	}
	if !(&Entry{LastModified: time.Now()}).CanRevalidate() {
		t.Error("entry with Last-Modified should revalidate")
	}
}
