package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_ServesCachedToken(t *testing.T) {
	c := NewTokenCache()
	loads := 0
	loader := func(ctx context.Context) (string, time.Time, error) {
		loads++
		return "access-1", time.Now().UTC().Add(time.Hour), nil
	}

	got, err := c.GetOrLoad(context.Background(), "usr_1", loader)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)

	got, err = c.GetOrLoad(context.Background(), "usr_1", loader)
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)
	assert.Equal(t, 1, loads)
}

func TestTokenCache_ExpiryBoundsCaching(t *testing.T) {
	c := NewTokenCache()
	now := time.Now().UTC()
	c.now = func() time.Time { return now }

	_, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-1", now.Add(time.Minute), nil
	})
	require.NoError(t, err)

	// Past the token's own expiry the cache must reload, even though the
	// five minute cap has not elapsed.
	now = now.Add(2 * time.Minute)
	got, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-2", now.Add(time.Hour), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "access-2", got)
}

func TestTokenCache_CapsLongExpiries(t *testing.T) {
	c := NewTokenCache()
	now := time.Now().UTC()
	c.now = func() time.Time { return now }

	_, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-1", now.Add(24 * time.Hour), nil
	})
	require.NoError(t, err)

	// Six minutes later the five minute cap has expired the entry.
	now = now.Add(6 * time.Minute)
	got, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-2", now.Add(24 * time.Hour), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "access-2", got)
}

func TestTokenCache_Invalidate(t *testing.T) {
	c := NewTokenCache()

	_, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-1", time.Now().UTC().Add(time.Hour), nil
	})
	require.NoError(t, err)

	c.Invalidate("usr_1")

	got, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-2", time.Now().UTC().Add(time.Hour), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "access-2", got)
}

func TestTokenCache_LoaderErrorNotCached(t *testing.T) {
	c := NewTokenCache()

	_, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "", time.Time{}, fmt.Errorf("vault unavailable")
	})
	assert.Error(t, err)

	got, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
		return "access-1", time.Now().UTC().Add(time.Hour), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)
}

func TestTokenCache_ConcurrentMissesCollapse(t *testing.T) {
	c := NewTokenCache()
	var loads atomic.Int32

	start := make(chan struct{})
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := c.GetOrLoad(context.Background(), "usr_1", func(ctx context.Context) (string, time.Time, error) {
				loads.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "access-1", time.Now().UTC().Add(time.Hour), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "access-1", got)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load(), "a burst of misses costs one vault read")
}

func TestTokenCache_IsolatesUsers(t *testing.T) {
	c := NewTokenCache()

	for _, userID := range []string{"usr_1", "usr_2"} {
		_, err := c.GetOrLoad(context.Background(), userID, func(ctx context.Context) (string, time.Time, error) {
			return "access-" + userID, time.Now().UTC().Add(time.Hour), nil
		})
		require.NoError(t, err)
	}

	c.Invalidate("usr_1")
	got, err := c.GetOrLoad(context.Background(), "usr_2", func(ctx context.Context) (string, time.Time, error) {
		return "reloaded", time.Now().UTC().Add(time.Hour), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "access-usr_2", got)
}
