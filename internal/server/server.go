// Package server serves the dashboard, its HTMX fragments and the JSON API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"team-health/internal/reports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Config holds the listener settings.
type Config struct {
	Addr  string
	Debug bool
}

// Server is the dashboard HTTP server.
type Server struct {
	builder *reports.Builder
	engine  *gin.Engine
	http    *http.Server
	appJS   []byte
}

// New wires the routes. The client script is minified once here.
func New(builder *reports.Builder, cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{builder: builder, appJS: minifiedAppJS()}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())
	s.registerRoutes(r)
	s.engine = r

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Reports can fan out to many upstream calls.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("Dashboard listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// accessLog logs one line per request through the global zerolog logger.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Bool("htmx", isHTMX(c)).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	}
}
