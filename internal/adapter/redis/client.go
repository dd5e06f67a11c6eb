package redis

import (
	"fmt"

	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient parses redisURL and returns a client with metrics and circuit
// breaker hooks installed. It does not dial; callers ping when they need to.
func NewClient(redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	if m != nil {
		client.AddHook(NewMetricsHook(m))
		client.AddHook(NewCircuitBreakerHook(m))
	}
	return client, nil
}
