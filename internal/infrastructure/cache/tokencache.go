package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/resona-io/resona/internal/shared/biztime"
)

// maxTokenCacheTTL caps how long an access token may be served from memory.
// Short enough that a revoked or rotated token leaves the cache quickly.
const maxTokenCacheTTL = 5 * time.Minute

type cachedToken struct {
	accessToken string
	cachedUntil time.Time
}

// TokenCache is an in-process read-through cache for access tokens keyed by
// user. Concurrent misses for the same user collapse into one loader call via
// singleflight, so a burst of motion events costs at most one vault read.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]cachedToken
	group  singleflight.Group
	now    func() time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]cachedToken),
		now:    biztime.NowUTC,
	}
}

// GetOrLoad returns the cached access token for the user, or runs loader to
// fetch one. The loader reports the token's expiry; the cache holds it until
// min(expiry, now+5m).
func (c *TokenCache) GetOrLoad(ctx context.Context, userID string, loader func(ctx context.Context) (accessToken string, expiresAt time.Time, err error)) (string, error) {
	c.mu.RLock()
	entry, found := c.tokens[userID]
	c.mu.RUnlock()
	if found && c.now().Before(entry.cachedUntil) {
		return entry.accessToken, nil
	}

	result, err, _ := c.group.Do(userID, func() (any, error) {
		// Re-check under the flight: another caller may have populated the
		// entry between the miss and the Do.
		c.mu.RLock()
		entry, found := c.tokens[userID]
		c.mu.RUnlock()
		if found && c.now().Before(entry.cachedUntil) {
			return entry.accessToken, nil
		}

		accessToken, expiresAt, err := loader(ctx)
		if err != nil {
			return "", err
		}

		cachedUntil := c.now().Add(maxTokenCacheTTL)
		if expiresAt.Before(cachedUntil) {
			cachedUntil = expiresAt
		}
		c.mu.Lock()
		c.tokens[userID] = cachedToken{accessToken: accessToken, cachedUntil: cachedUntil}
		c.mu.Unlock()
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the user's cached token. Called after a refresh rotates
// the token or after the provider rejects it.
func (c *TokenCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.tokens, userID)
	c.mu.Unlock()
}
