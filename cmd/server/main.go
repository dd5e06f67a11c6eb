package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/auth"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/httpserver"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/redis"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/websocket"
	"github.com/okatech-org/sgg.ga-sub004/internal/app"
	"github.com/okatech-org/sgg.ga-sub004/internal/hub"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/config"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/logging"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const redisStartupPingTimeout = 5 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupRedis never fails on an unreachable server: the gateway serves
// clients without upstream events and the bridge keeps retrying.
func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) (*goredis.Client, error) {
	client, err := redis.NewClient(cfg.RedisURL, m)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisStartupPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unreachable at startup, continuing without upstream events", "error", err)
	}
	return client, nil
}

func run() error {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	registry := metrics.NewRegistry()
	gatewayMetrics := metrics.NewGatewayMetrics(registry)
	redisMetrics := metrics.NewRedisMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	redisClient, err := setupRedis(cfg, redisMetrics)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	gate := auth.NewGate(
		auth.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, clock),
		redis.NewRevocationStore(redisClient, clock),
	)

	h := hub.New(hub.NewRegistry(), clock, gatewayMetrics, hub.Options{
		SendBufferSize: cfg.SendBufferSize,
		WriteTimeout:   cfg.WriteTimeout,
	})
	broadcaster := hub.NewBroadcaster(h)
	dispatcher := hub.NewDispatcher(h, broadcaster, cfg.MaxMessagesPerMinute)

	gateway := app.NewGateway(
		h,
		hub.NewHeartbeatMonitor(h, cfg.HeartbeatInterval, cfg.ClientTimeout),
		app.NewBridge(redis.NewEventSubscriber(redisClient, cfg.UpstreamChannel, cfg.DirectChannel), broadcaster, gatewayMetrics, clock),
		app.NewStatsPublisher(h, broadcaster, clock, cfg.StatsInterval),
	)

	wsHandler := websocket.NewHandler(h, dispatcher, gate,
		websocket.NewConnectionLimits(cfg.MaxWebSocketConnections, cfg.MaxConnectionsPerIP, cfg.HandshakeRate, clock),
		gatewayMetrics,
		websocket.HandlerConfig{
			AppURL:         cfg.AppURL,
			Development:    !cfg.IsProduction(),
			MaxPayloadSize: cfg.MaxPayloadSize,
		},
	)

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Stats:       h,
		Auth:        gate,
		WebSocket:   wsHandler.Handle,
		Metrics:     metrics.Handler(registry),
		HTTPMetrics: httpMetrics,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The gateway outlives the signal context so it can say goodbye to
	// clients after the listener is closed.
	gateway.Start(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		gateway.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
