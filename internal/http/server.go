// Package http serves the health, status and Prometheus metrics endpoints
// for a running pdfchat pipeline.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfchat/internal/logging"
	"github.com/fyrsmithlabs/pdfchat/internal/telemetry"
)

// SessionCounter reports how many chat sessions have been opened.
type SessionCounter interface {
	Sessions() int64
}

// IndexInfo describes the vector index being served.
type IndexInfo interface {
	Len() int
	Dimension() int
	Backend() string
}

// HealthReporter reports exporter health.
type HealthReporter interface {
	Health() telemetry.HealthStatus
}

// Server provides HTTP endpoints for pdfchat.
type Server struct {
	echo     *echo.Echo
	logger   *zap.Logger
	config   *Config
	deps     Deps
	gatherer prometheus.Gatherer
	started  time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Version is reported on /api/v1/status.
	Version string
}

// Deps are the pipeline components inspected by the status endpoints.
// Any of them may be nil.
type Deps struct {
	Chain     SessionCounter
	Index     IndexInfo
	Telemetry HealthReporter
	// Gatherer backs /metrics. Nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// HTTPMetrics records request metrics through OpenTelemetry when set.
	HTTPMetrics *HTTPMetrics
}

// NewServer creates a new HTTP server.
func NewServer(logger *zap.Logger, cfg *Config, deps Deps) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9090,
		}
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if deps.HTTPMetrics != nil {
		e.Use(deps.HTTPMetrics.MetricsMiddleware())
	}
	e.Use(requestContext(logger))

	s := &Server{
		echo:     e,
		logger:   logger,
		config:   cfg,
		deps:     deps,
		gatherer: gatherer,
		started:  time.Now(),
	}
	s.registerRoutes()

	return s, nil
}

// requestContext attaches the request ID to the request context and logs
// each request once it completes.
func requestContext(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if logging.ValidID(id) {
				c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", id),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.logger),
	})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
}

// handleHealth reports liveness. A degraded telemetry exporter does not make
// the process unhealthy, it is only surfaced in the body.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: StatusOK}
	if s.deps.Index == nil {
		resp.Status = StatusStarting
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	if s.deps.Telemetry != nil && s.deps.Telemetry.Health().Degraded {
		resp.Status = StatusDegraded
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:  StatusOK,
		Version: s.config.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.deps.Index != nil {
		resp.Index = &IndexStatus{
			Backend:   s.deps.Index.Backend(),
			Chunks:    s.deps.Index.Len(),
			Dimension: s.deps.Index.Dimension(),
		}
	} else {
		resp.Status = StatusStarting
	}
	if s.deps.Chain != nil {
		resp.Sessions = s.deps.Chain.Sessions()
	}
	if s.deps.Telemetry != nil {
		h := s.deps.Telemetry.Health()
		resp.Telemetry = &h
		if h.Degraded && resp.Status == StatusOK {
			resp.Status = StatusDegraded
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server. It blocks until the server stops and returns
// nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
