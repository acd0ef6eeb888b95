// Package app wires a Kitsu client from configuration, attaching the Redis
// response cache and shared backoff state when a Redis URL is configured.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/kitsu-catalog/internal/config"
	"github.com/Sternrassler/kitsu-catalog/pkg/cache"
	"github.com/Sternrassler/kitsu-catalog/pkg/client"
	"github.com/Sternrassler/kitsu-catalog/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const pingTimeout = 5 * time.Second

// Deps holds what the binaries share.
type Deps struct {
	Config *config.Config
	Client *client.Client

	// Redis is nil when caching is disabled.
	Redis *redis.Client
}

// Open builds the client. A configured but unreachable Redis is an error.
func Open(ctx context.Context, cfg *config.Config) (*Deps, error) {
	logger := log.With().Str("component", "app").Logger()
	clientCfg := cfg.Client()
	deps := &Deps{Config: cfg}

	if cfg.RedisURL != "" {
		opts, err := cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis, response cache enabled")

		clientCfg.Transport = cache.NewTransport(cache.NewManager(rdb), nil, log.Logger)
		clientCfg.Backoff = ratelimit.NewRedisStore(rdb)
		deps.Redis = rdb
	} else {
		logger.Info().Msg("No Redis configured, response cache disabled")
	}

	c, err := client.New(clientCfg)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("create kitsu client: %w", err)
	}
	deps.Client = c
	return deps, nil
}

// Close releases the Redis connection, if any.
func (d *Deps) Close() error {
	if d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}
