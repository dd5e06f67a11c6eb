package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	revocationKeyPrefix     = "token:blacklist:"
	revocationLookupTimeout = 2 * time.Second
)

func revocationKey(token string) string {
	return revocationKeyPrefix + token
}

// RevocationStore is the token deny list shared with the platform API.
// Entries live until the token would have expired anyway.
type RevocationStore struct {
	rdb   goredis.Cmdable
	clock clockwork.Clock
	group singleflight.Group
}

func NewRevocationStore(rdb goredis.Cmdable, clock clockwork.Clock) *RevocationStore {
	return &RevocationStore{rdb: rdb, clock: clock}
}

// IsRevoked reports whether token is on the deny list. Concurrent lookups
// for the same token share one round trip. The shared lookup is detached from
// the first caller's cancellation and bounded by its own timeout.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	v, err, _ := s.group.Do(token, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revocationLookupTimeout)
		defer cancel()

		n, err := s.rdb.Exists(lookupCtx, revocationKey(token)).Result()
		if err != nil {
			return false, fmt.Errorf("failed to check token revocation: %w", err)
		}
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Revoke adds token to the deny list until expiresAt. Already expired tokens are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revocationKey(token), "true", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
