// Package server owns the HTTP server lifecycle and the background runners.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/notesrag/internal/profile"
	"github.com/hrygo/notesrag/server/observability"
	v1 "github.com/hrygo/notesrag/server/router/api/v1"
	"github.com/hrygo/notesrag/server/runner/embedding"
)

const (
	shutdownTimeout = 10 * time.Second
	// Rate limiter entries idle this long are dropped.
	limiterIdleTTL = 10 * time.Minute
)

// Server serves the JSON API and runs the embedding reconciliation in the background.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	api        *v1.APIV1Service
	runner     *embedding.Runner
	logger     *slog.Logger

	runnerCancel context.CancelFunc
	wg           sync.WaitGroup
}

// NewServer builds the echo instance and mounts the API. The runner may be nil.
func NewServer(p *profile.Profile, api *v1.APIV1Service, runner *embedding.Runner, logger *slog.Logger) *Server {
	e := echo.New()
	e.Debug = p.IsDev()
	e.HideBanner = true
	e.HidePort = true
	e.Use(observability.RequestLogger(logger))
	e.Use(middleware.Recover())

	api.RegisterRoutes(e)

	return &Server{
		Profile:    p,
		echoServer: e,
		api:        api,
		runner:     runner,
		logger:     logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start launches the background loops and blocks serving HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runnerCancel = cancel

	if s.runner != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runner.Run(runCtx)
		}()
	}
	if s.api.RateLimiter != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.pruneLimiter(runCtx)
		}()
	}

	address := net.JoinHostPort(s.Profile.Addr, fmt.Sprint(s.Profile.Port))
	s.logger.Info("server listening", "address", address, "mode", s.Profile.Mode)

	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to serve")
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the background loops.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
	}
	if s.runnerCancel != nil {
		s.runnerCancel()
	}
	s.wg.Wait()
	s.logger.Info("server stopped")
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.api.RateLimiter.Prune(limiterIdleTTL); n > 0 {
				s.logger.Debug("pruned idle rate limiters", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
