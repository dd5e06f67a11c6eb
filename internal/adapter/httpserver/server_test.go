package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/auth"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/config"
	apperrors "github.com/okatech-org/sgg.ga-sub004/internal/platform/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("http-server-test-secret")

type fixedStats struct{ stats hub.Stats }

func (f fixedStats) Stats() hub.Stats { return f.stats }

type testServerOption func(*Deps)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(d *Deps) { d.HealthChecks = checks }
}

func withStats(s hub.Stats) testServerOption {
	return func(d *Deps) { d.Stats = fixedStats{s} }
}

func newTestServer(t *testing.T, opts ...testServerOption) *Server {
	t.Helper()
	clock := clockwork.NewRealClock()
	deps := Deps{
		Stats: fixedStats{},
		Auth:  auth.NewGate(auth.NewJWTVerifier(testSecret, "", clock), nil),
		WebSocket: func(c echo.Context) error {
			return c.String(http.StatusTeapot, "ws")
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewServer(&config.Config{Port: "0"}, deps)
}

func bearer(t *testing.T, role domain.Role) string {
	t.Helper()
	token, err := auth.NewSigner(testSecret, "", clockwork.NewRealClock()).
		Sign(domain.Principal{UserID: "user-" + string(role), Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestStatsEndpoint_Admin(t *testing.T) {
	s := newTestServer(t, withStats(hub.Stats{
		TotalConnections:  12,
		ActiveConnections: 3,
		ClientsByRole:     map[string]int{"admin_sgg": 1, "citoyen": 2},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/ws/stats", nil)
	req.Header.Set("Authorization", bearer(t, domain.RoleAdminSGG))
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got hub.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(12), got.TotalConnections)
	assert.Equal(t, 3, got.ActiveConnections)
	assert.Equal(t, map[string]int{"admin_sgg": 1, "citoyen": 2}, got.ClientsByRole)
}

func TestStatsEndpoint_Rejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantType   apperrors.ErrorType
		wantError  string
	}{
		{"no token", "", http.StatusUnauthorized, apperrors.TypeUnauthorized, "Authentication required"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, apperrors.TypeUnauthorized, "Invalid token"},
		{"directeur is not enough", bearer(t, domain.RoleDirecteurSGG), http.StatusForbidden, apperrors.TypeForbidden, "administrator role required"},
		{"citoyen", bearer(t, domain.RoleCitoyen), http.StatusForbidden, apperrors.TypeForbidden, "administrator role required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/ws/stats", nil)
			req.RemoteAddr = "10.1.1.1:1000"
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(s, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestStatsEndpoint_RateLimited(t *testing.T) {
	s := newTestServer(t)

	codes := make(map[int]int)
	for range apiRateBurst + 1 {
		req := httptest.NewRequest(http.MethodGet, "/api/ws/stats", nil)
		req.RemoteAddr = "10.2.2.2:1000"
		codes[serve(s, req).Code]++
	}

	assert.Equal(t, apiRateBurst, codes[http.StatusUnauthorized])
	assert.Equal(t, 1, codes[http.StatusTooManyRequests])
}

func TestWebSocketRouteIsMounted(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	s := newTestServer(t, func(d *Deps) {
		d.Metrics = metrics.Handler(reg)
		d.HTTPMetrics = httpMetrics
	})

	serve(s, httptest.NewRequest(http.MethodGet, "/version", nil))
	serve(s, httptest.NewRequest(http.MethodGet, "/ws", nil))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sgg_realtime_http_requests_total")
	assert.InDelta(t, 1, testutil.ToFloat64(httpMetrics.RequestsTotal.WithLabelValues(http.MethodGet, "/version", "2xx")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(httpMetrics.RequestsTotal.WithLabelValues(http.MethodGet, "/ws", "4xx")), 0)
}

func TestShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, s.Shutdown(ctx))
}
