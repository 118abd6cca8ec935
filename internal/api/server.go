// Package api exposes the oracle over HTTP: read accessors for prices and
// consistency states, the ingest endpoint for relayers, and governance-gated
// committee key administration.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/service"
)

// Options tune the HTTP server.
type Options struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the oracle HTTP API.
type Server struct {
	opts   Options
	engine *service.Engine
	router *gin.Engine
	server *http.Server
	logger zerolog.Logger
}

// NewServer builds the router and binds handlers.
func NewServer(opts Options, engine *service.Engine, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		opts:   opts,
		engine: engine,
		router: router,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/v1")
	{
		v1.GET("/price/:pair", s.handleGetPrice)
		v1.GET("/prices", s.handleGetPrices)
		v1.GET("/derived", s.handleGetDerived)
		v1.GET("/hcc", s.handleHCCStates)
		v1.GET("/committees/:id", s.handleGetCommittee)
		v1.POST("/ingest", s.handleIngest)
		v1.POST("/committees", s.handleRegisterCommittee)
		v1.DELETE("/committees/:id", s.handleRemoveCommittee)
	}
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Run serves until ctx is cancelled, then drains with the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.opts.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.ListenAddr).Msg("api listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
