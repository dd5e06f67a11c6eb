package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second

	statusOK        = "ok"
	statusReady     = "ready"
	statusUnhealthy = "unhealthy"
)

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type livenessReport struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime"`
	Connections *int    `json:"connections,omitempty"`
}

// probeReport lists the outcome of every dependency check by name.
type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.probe(c, startupProbeTimeout)
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.probe(c, readinessProbeTimeout)
}

// handleLiveness never touches dependencies: a gateway without Redis still
// serves its connected clients.
func (s *Server) handleLiveness(c echo.Context) error {
	report := livenessReport{
		Status: statusOK,
		Uptime: time.Since(s.startTime).Seconds(),
	}
	if s.stats != nil {
		active := s.stats.Stats().ActiveConnections
		report.Connections = &active
	}

	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// probe runs every check under one deadline. Any failure makes the whole
// probe unhealthy but the remaining checks still run and are reported.
func (s *Server) probe(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	report := probeReport{Status: statusReady}
	code := http.StatusOK
	if len(s.healthChecks) > 0 {
		report.Checks = make(map[string]string, len(s.healthChecks))
	}

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
			report.Checks[hc.Name] = err.Error()
			report.Status = statusUnhealthy
			code = http.StatusServiceUnavailable
			continue
		}
		report.Checks[hc.Name] = statusOK
	}

	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to write probe response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
