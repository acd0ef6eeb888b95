// Package server exposes the catalog over HTTP for a browser front end.
//
// REST routes serve single pages and records. WebSocket routes bind one
// collection loader and one visibility driver to the connection: the browser
// reports sentinel visibility and the session pushes each loaded page back.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/Sternrassler/kitsu-catalog/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 10 * time.Second
	readyTimeout    = 2 * time.Second
)

// Catalog is the upstream the server reads from. *client.Client implements it.
type Catalog interface {
	FetchPage(ctx context.Context, q catalog.Query, cursor catalog.Cursor) (*catalog.Page, error)
	FetchRecord(ctx context.Context, q catalog.Query) (*catalog.Record, error)
}

// Options configures a Server.
type Options struct {
	Catalog Catalog

	// LoadTimeout bounds each page load of a WebSocket session. 0 disables it.
	LoadTimeout time.Duration

	// Ready, when set, backs GET /ready.
	Ready func(ctx context.Context) error
}

// Server routes HTTP and WebSocket requests.
type Server struct {
	catalog     Catalog
	loadTimeout time.Duration
	ready       func(ctx context.Context) error
	router      *gin.Engine
	sessions    *registry
	logger      zerolog.Logger
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Catalog == nil {
		panic("server catalog cannot be nil")
	}

	s := &Server{
		catalog:     opts.Catalog,
		loadTimeout: opts.LoadTimeout,
		ready:       opts.Ready,
		router:      gin.New(),
		sessions:    newRegistry(),
		logger:      log.With().Str("component", "server").Logger(),
	}

	s.router.Use(gin.Recovery(), requestID(), accessLog(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/ready", s.readiness)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api")
	api.GET("/search/:media", s.search)
	api.GET("/trending/:media", s.trending)
	api.GET("/media/:media/:slug", s.record)
	api.GET("/media/:media/id/:id", s.recordByID)
	api.GET("/media/:media/:slug/:relation", s.relation)

	ws := s.router.Group("/ws")
	ws.GET("/search/:media", s.searchSession)
	ws.GET("/media/:media/:slug/:relation", s.relationSession)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down and closes all sessions.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting catalog server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down catalog server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.sessions.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

func (s *Server) readiness(c *gin.Context) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
