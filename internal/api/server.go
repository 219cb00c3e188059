package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/camruler/camruler/internal/api/middleware"
	v2 "github.com/camruler/camruler/internal/api/v2"
	"github.com/camruler/camruler/internal/logger"
)

// Server is the camruler HTTP server.
type Server struct {
	echo       *echo.Echo
	config     *Config
	log        logger.Logger
	controller *v2.Controller
	deps       v2.Deps
}

// New creates the server, its middleware chain and all routes.
func New(config *Config, deps v2.Deps) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
	}

	s := &Server{
		config: config,
		log:    log.Module("api"),
		deps:   deps,
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.NewEchoLogger(log.Module("echo"))
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("metrics", s.config.ServeMetrics && deps.Metrics != nil),
		logger.Bool("debug", config.Debug))
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if s.deps.Metrics != nil {
		s.echo.Use(mw.NewMetrics(s.deps.Metrics.HTTP))
	}
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log.Module("http"),
		mw.SkipPaths(v2.Prefix+"/frames/live", "/metrics")))

	security := mw.DefaultSecurityConfig()
	security.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(security))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
	s.echo.Use(mw.NewSecureHeaders(security))
}

func (s *Server) setupRoutes() error {
	controller, err := v2.New(s.echo, s.deps)
	if err != nil {
		return fmt.Errorf("failed to initialize API v2: %w", err)
	}
	s.controller = controller

	if s.config.ServeMetrics && s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}
	return s.registerUI()
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Controller returns the API controller.
func (s *Server) Controller() *v2.Controller { return s.controller }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", logger.String("address", s.config.Address()))
		errCh <- s.echo.Start(s.config.Address())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown disconnects websocket peers and stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.controller.Shutdown()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
