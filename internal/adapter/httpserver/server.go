// Package httpserver exposes the gateway over HTTP: the WebSocket endpoint,
// health probes, Prometheus metrics and the connection stats API.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/config"
)

const readHeaderTimeout = 10 * time.Second

type statsSource interface {
	Stats() hub.Stats
}

type authenticator interface {
	Authenticate(r *http.Request) (domain.Principal, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Stats        statsSource
	Auth         authenticator
	WebSocket    echo.HandlerFunc
	Metrics      http.Handler
	HTTPMetrics  *metrics.HTTPMetrics
	HealthChecks []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	stats            statsSource
	auth             authenticator
	websocketHandler echo.HandlerFunc
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = readHeaderTimeout

	srv := &Server{
		echo:             e,
		config:           cfg,
		stats:            deps.Stats,
		auth:             deps.Auth,
		websocketHandler: deps.WebSocket,
		metricsHandler:   deps.Metrics,
		httpMetrics:      deps.HTTPMetrics,
		healthChecks:     deps.HealthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start blocks until the server stops. After Shutdown it returns an error
// wrapping http.ErrServerClosed.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked WebSocket connections are not
// touched; the gateway closes those.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
