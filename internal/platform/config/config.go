package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minJWTSecretLength = 16

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	RedisURL        string `env:"REDIS_URL" default:"redis://localhost:6379"`
	UpstreamChannel string `env:"UPSTREAM_CHANNEL" default:"notifications"`
	DirectChannel   string `env:"DIRECT_CHANNEL" default:"notifications:direct"`

	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	ClientTimeout        time.Duration `env:"CLIENT_TIMEOUT" default:"60s"`
	MaxMessagesPerMinute int           `env:"MAX_MESSAGES_PER_MINUTE" default:"30"`
	MaxPayloadSize       int64         `env:"MAX_PAYLOAD_SIZE" default:"4096"`
	SendBufferSize       int           `env:"SEND_BUFFER_SIZE" default:"16"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT" default:"5s"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	HandshakeRate           float64 `env:"HANDSHAKE_RATE" default:"10"`

	StatsInterval   time.Duration `env:"STATS_INTERVAL" default:"15s"` // 0 disables
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"JWT_SECRET":       cfg.JWTSecret,
		"REDIS_URL":        cfg.RedisURL,
		"UPSTREAM_CHANNEL": cfg.UpstreamChannel,
		"DIRECT_CHANNEL":   cfg.DirectChannel,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	if cfg.UpstreamChannel == cfg.DirectChannel {
		return errors.New("UPSTREAM_CHANNEL and DIRECT_CHANNEL must differ")
	}

	if _, err := url.Parse(cfg.AppURL); err != nil {
		return fmt.Errorf("APP_URL must be a valid URL: %w", err)
	}

	positive := map[string]int64{
		"HEARTBEAT_INTERVAL":        int64(cfg.HeartbeatInterval),
		"CLIENT_TIMEOUT":            int64(cfg.ClientTimeout),
		"MAX_MESSAGES_PER_MINUTE":   int64(cfg.MaxMessagesPerMinute),
		"MAX_PAYLOAD_SIZE":          cfg.MaxPayloadSize,
		"SEND_BUFFER_SIZE":          int64(cfg.SendBufferSize),
		"WRITE_TIMEOUT":             int64(cfg.WriteTimeout),
		"MAX_WEBSOCKET_CONNECTIONS": int64(cfg.MaxWebSocketConnections),
		"MAX_CONNECTIONS_PER_IP":    int64(cfg.MaxConnectionsPerIP),
		"SHUTDOWN_TIMEOUT":          int64(cfg.ShutdownTimeout),
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.HandshakeRate <= 0 {
		return errors.New("HANDSHAKE_RATE must be positive")
	}
	if cfg.StatsInterval < 0 {
		return errors.New("STATS_INTERVAL must not be negative")
	}
	if cfg.ClientTimeout <= cfg.HeartbeatInterval {
		return fmt.Errorf("CLIENT_TIMEOUT (%s) must exceed HEARTBEAT_INTERVAL (%s)", cfg.ClientTimeout, cfg.HeartbeatInterval)
	}

	return nil
}
