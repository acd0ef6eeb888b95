package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the backoff state.
type StateStore interface {
	// Load returns the current state, or nil when none is recorded.
	Load(ctx context.Context) (*BackoffState, error)
	// Save records state; the store may drop it after ttl.
	Save(ctx context.Context, state *BackoffState, ttl time.Duration) error
}

// MemoryStore keeps the backoff state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state *BackoffState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements StateStore.
func (m *MemoryStore) Load(ctx context.Context) (*BackoffState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

// Save implements StateStore. The ttl is ignored; expiry is read from BlockedUntil.
func (m *MemoryStore) Save(ctx context.Context, state *BackoffState, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *state
	m.state = &s
	return nil
}

// RedisStore shares the backoff state between processes.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store backed by redisClient.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Load implements StateStore.
func (r *RedisStore) Load(ctx context.Context) (*BackoffState, error) {
	data, err := r.redis.Get(ctx, RedisKeyBlockedUntil).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get backoff state: %w", err)
	}

	var state BackoffState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode backoff state: %w", err)
	}
	return &state, nil
}

// Save implements StateStore.
func (r *RedisStore) Save(ctx context.Context, state *BackoffState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode backoff state: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.redis.Set(ctx, RedisKeyBlockedUntil, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set backoff state: %w", err)
	}
	return nil
}
