// Command notify publishes one event to the gateway's upstream Redis
// channels, mints development tokens, or revokes a token.
//
//	notify -type nomination_approved -data '{"id":"n-12"}'
//	notify -user u-42 -channel reporting:update -data '{"report":"r-3"}'
//	notify -mint-token -user u-42 -role sgpr -ttl 8h
//	notify -revoke <token>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/auth"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/redis"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/logging"
	"github.com/okatech-org/sgg.ga-sub004/internal/platform/version"
)

const commandTimeout = 10 * time.Second

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	var (
		redisURL  = flag.String("redis", envOr("REDIS_URL", "redis://localhost:6379"), "Redis URL (or set REDIS_URL env)")
		upstream  = flag.String("upstream", envOr("UPSTREAM_CHANNEL", "notifications"), "upstream channel")
		direct    = flag.String("direct", envOr("DIRECT_CHANNEL", "notifications:direct"), "direct channel")
		eventType = flag.String("type", "", "event type for a channel broadcast")
		data      = flag.String("data", "{}", "event payload as a JSON object")
		userID    = flag.String("user", "", "target user id (direct event) or token subject")
		role      = flag.String("role", "", "target role (direct event) or token role")
		channel   = flag.String("channel", "", "channel for a direct event (default notifications)")
		mintToken = flag.Bool("mint-token", false, "print a signed token for -user and -role")
		ttl       = flag.Duration("ttl", 8*time.Hour, "lifetime of a minted token")
		revoke    = flag.String("revoke", "", "revoke the given token until it expires")
		verbose   = flag.Bool("verbose", false, "Verbose logging")
		showVer   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.Get().String())
		return
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	clock := clockwork.NewRealClock()

	if *mintToken {
		token, err := mint(clock, *userID, *role, *ttl)
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		fmt.Println(token)
		return
	}

	rdb, err := redis.NewClient(*redisURL, nil)
	if err != nil {
		log.Fatalf("Failed to create Redis client: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if *revoke != "" {
		expiresAt, err := auth.ExpiresAt(*revoke)
		if err != nil {
			log.Fatalf("Cannot revoke token: %v", err)
		}
		if err := redis.NewRevocationStore(rdb, clock).Revoke(ctx, *revoke, expiresAt); err != nil {
			log.Fatalf("Failed to revoke token: %v", err)
		}
		slog.Info("Token revoked", "expires_at", expiresAt)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(*data), &payload); err != nil {
		log.Fatalf("-data must be a JSON object: %v", err)
	}

	publisher := redis.NewPublisher(rdb, *upstream, *direct, clock)
	if *userID != "" || *role != "" {
		target := domain.DirectTarget{UserID: *userID, Role: domain.Role(*role), Channel: domain.Channel(*channel)}
		if err := publisher.PublishDirect(ctx, target, payload); err != nil {
			log.Fatalf("Failed to publish direct event: %v", err)
		}
		slog.Info("Direct event published", "user_id", *userID, "role", *role, "channel", *channel)
		return
	}

	if err := publisher.PublishNotification(ctx, *eventType, payload); err != nil {
		log.Fatalf("Failed to publish event: %v", err)
	}
	slog.Info("Event published", "type", *eventType, "channel", *upstream)
}

func mint(clock clockwork.Clock, userID, role string, ttl time.Duration) (string, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	if userID == "" {
		return "", fmt.Errorf("-user is required")
	}
	r := domain.ParseRole(role)
	if !r.Known() {
		return "", fmt.Errorf("unknown role %q", role)
	}

	signer := auth.NewSigner([]byte(secret), os.Getenv("JWT_ISSUER"), clock)
	return signer.Sign(domain.Principal{UserID: userID, Role: r}, ttl)
}
