package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/kitsu-catalog/internal/app"
	"github.com/Sternrassler/kitsu-catalog/internal/config"
	"github.com/Sternrassler/kitsu-catalog/internal/server"
	"github.com/Sternrassler/kitsu-catalog/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Catalog proxy failed")
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv(config.EnvConfigFile))
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging("catalog-proxy"))
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("user_agent", cfg.UserAgent).
		Bool("cache", deps.Redis != nil).
		Msg("Catalog proxy configured")

	return newServer(deps).Run(ctx, cfg.Addr())
}

func newServer(deps *app.Deps) *server.Server {
	return server.New(server.Options{
		Catalog:     deps.Client,
		LoadTimeout: deps.Config.LoadTimeout,
		Ready:       readyCheck(deps.Redis),
	})
}

// readyCheck reports Redis reachability. Without Redis the proxy is always ready.
func readyCheck(rdb *redis.Client) func(ctx context.Context) error {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
