package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	refreshLeasePrefix = "token:refresh_lease:"
	// DefaultRefreshLeaseTTL bounds how long a crashed holder can block other
	// refreshers for the same user.
	DefaultRefreshLeaseTTL = 2 * time.Minute
)

// releaseScript deletes the lease only when the caller still holds it, so a
// slow holder cannot release a lease that already expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RefreshLeaseStore serializes token refreshes per user across processes.
// One lease per user; whoever holds it refreshes, everyone else skips.
type RefreshLeaseStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRefreshLeaseStore(client *redis.Client) *RefreshLeaseStore {
	return &RefreshLeaseStore{client: client, ttl: DefaultRefreshLeaseTTL}
}

func (s *RefreshLeaseStore) buildKey(userID string) string {
	return refreshLeasePrefix + userID
}

// Acquire attempts to take the per-user lease. Returns a holder token to pass
// to Release, or ok=false when another process holds the lease.
func (s *RefreshLeaseStore) Acquire(ctx context.Context, userID string) (holder string, ok bool, err error) {
	holder = uuid.NewString()
	ok, err = s.client.SetNX(ctx, s.buildKey(userID), holder, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire refresh lease: %w", err)
	}
	return holder, ok, nil
}

// Release frees the lease if the caller still holds it. Releasing a lease
// that expired or was taken over is a no-op.
func (s *RefreshLeaseStore) Release(ctx context.Context, userID, holder string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.buildKey(userID)}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release refresh lease: %w", err)
	}
	return nil
}
