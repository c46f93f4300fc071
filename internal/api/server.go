// Package api serves the read-only HTTP view of the running meters.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartmeter-poller/internal/catalog"
	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/logger"
)

// MeterSource is satisfied by *collector.Manager.
type MeterSource interface {
	Meters() []*collector.Meter
	Meter(id string) (*collector.Meter, bool)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	addr   string
	meters MeterSource
	cat    *catalog.Catalog
	logger logger.Logger
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(addr string, meters MeterSource, cat *catalog.Catalog, log logger.Logger) *Server {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logger.NewTestLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	s := &Server{addr: addr, meters: meters, cat: cat, logger: log, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.addr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	v1.GET("/meters", s.handleListMeters)
	v1.GET("/meters/:id", s.handleGetMeter)
	v1.GET("/meters/:id/measurements", s.handleMeasurements)
	v1.GET("/catalog", s.handleCatalog)
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
