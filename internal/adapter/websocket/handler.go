// Package websocket accepts client sockets, authenticates the handshake and
// runs the per-connection read loop that feeds the hub dispatcher.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/auth"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/correlation"
)

const DefaultMaxPayloadSize = 4096

type Authenticator interface {
	Authenticate(r *http.Request) (domain.Principal, error)
}

type HandlerConfig struct {
	AppURL         string
	Development    bool
	MaxPayloadSize int64
}

// Handler serves the /ws endpoint.
type Handler struct {
	hub        *hub.Hub
	dispatcher *hub.Dispatcher
	auth       Authenticator
	limits     *ConnectionLimits
	metrics    *metrics.GatewayMetrics
	upgrader   websocket.Upgrader
	maxPayload int64
}

// NewHandler wires the handshake pipeline. limits may be nil.
func NewHandler(h *hub.Hub, d *hub.Dispatcher, authn Authenticator, limits *ConnectionLimits, m *metrics.GatewayMetrics, cfg HandlerConfig) *Handler {
	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = DefaultMaxPayloadSize
	}
	return &Handler{
		hub:        h,
		dispatcher: d,
		auth:       authn,
		limits:     limits,
		metrics:    m,
		maxPayload: cfg.MaxPayloadSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, cfg.Development),
		},
	}
}

// Handle is the echo handler for the handshake. It blocks for the lifetime of
// the connection.
func (h *Handler) Handle(c echo.Context) error {
	r := c.Request()
	ip := c.RealIP()

	if h.limits != nil {
		ok, reason := h.limits.Acquire(ip)
		if !ok {
			h.metrics.HandshakeRejections.WithLabelValues(string(reason)).Inc()
			slog.WarnContext(r.Context(), "WebSocket handshake refused", "remote_ip", ip, "reason", reason)
			return c.String(reason.Status(), "Too many connections")
		}
		defer h.limits.Release(ip)
	}

	principal, err := h.auth.Authenticate(r)
	if err != nil {
		h.metrics.HandshakeRejections.WithLabelValues("unauthorized").Inc()
		slog.InfoContext(r.Context(), "WebSocket authentication failed", "remote_ip", ip, "error", err)
		return c.String(http.StatusUnauthorized, auth.Reason(err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.metrics.HandshakeRejections.WithLabelValues("upgrade_failed").Inc()
		slog.WarnContext(r.Context(), "WebSocket upgrade failed", "remote_ip", ip, "error", err)
		return nil
	}
	conn.SetReadLimit(h.maxPayload)

	client, err := h.hub.Register(principal, transport{conn: conn})
	if err != nil {
		return nil
	}

	ctx := correlation.WithConnection(correlation.WithID(r.Context(), correlation.NewID()), client.ID(), principal.UserID)
	h.hub.Disconnect(client, h.readLoop(ctx, client, conn))
	return nil
}

// readLoop feeds every inbound data frame, text or binary, to the dispatcher
// until the socket fails and returns the reason to record.
func (h *Handler) readLoop(ctx context.Context, client *hub.Connection, conn *websocket.Conn) hub.DisconnectReason {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return readErrorReason(ctx, err)
		}
		h.dispatcher.Handle(ctx, client, raw)
	}
}

func readErrorReason(ctx context.Context, err error) hub.DisconnectReason {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return hub.ReasonClientClosed
		}
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		slog.WarnContext(ctx, "Inbound frame exceeds payload limit")
	} else {
		slog.DebugContext(ctx, "WebSocket read failed", "error", err)
	}
	return hub.ReasonTransportError
}
