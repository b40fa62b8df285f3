package token

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/cache"
	"github.com/resona-io/resona/internal/infrastructure/secretstore"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/retry"
)

// RefreshLease serializes refreshes per user across warden instances.
type RefreshLease interface {
	Acquire(ctx context.Context, userID string) (holder string, ok bool, err error)
	Release(ctx context.Context, userID, holder string) error
}

var _ RefreshLease = (*cache.RefreshLeaseStore)(nil)

// Warden proactively refreshes access tokens that are close to expiry, so
// motion handlers almost never pay the refresh latency inline. One failing
// user never blocks the rest of the sweep.
type Warden struct {
	userRepo    user.Repository
	vault       *secretstore.TokenVault
	tokenCache  *cache.TokenCache
	refresher   music.TokenRefresher
	lease       RefreshLease
	logger      logger.Interface

	safetyMargin time.Duration
	fanOutLimit  int

	now func() time.Time
}

func NewWarden(
	userRepo user.Repository,
	vault *secretstore.TokenVault,
	tokenCache *cache.TokenCache,
	refresher music.TokenRefresher,
	lease RefreshLease,
	safetyMargin time.Duration,
	fanOutLimit int,
	log logger.Interface,
) *Warden {
	if fanOutLimit <= 0 {
		fanOutLimit = 10
	}
	return &Warden{
		userRepo:     userRepo,
		vault:        vault,
		tokenCache:   tokenCache,
		refresher:    refresher,
		lease:        lease,
		logger:       log,
		safetyMargin: safetyMargin,
		fanOutLimit:  fanOutLimit,
		now:          biztime.NowUTC,
	}
}

// Execute sweeps all music-connected users and returns how many tokens were
// refreshed.
func (w *Warden) Execute(ctx context.Context) (int, error) {
	users, err := w.userRepo.ListMusicConnected(ctx)
	if err != nil {
		return 0, err
	}

	var refreshed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.fanOutLimit)
	for _, u := range users {
		g.Go(func() error {
			if w.sweepUser(ctx, u) {
				refreshed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(refreshed.Load()), err
	}
	return int(refreshed.Load()), nil
}

// sweepUser refreshes one user's token when it is within the safety margin.
// Reports true when a refresh happened.
func (w *Warden) sweepUser(ctx context.Context, u *user.User) bool {
	if u.TokenRef == "" {
		return false
	}

	holder, ok, err := w.lease.Acquire(ctx, u.UserID)
	if err != nil {
		w.logger.Warnw("failed to acquire refresh lease", "error", err, "user_id", u.UserID)
		return false
	}
	if !ok {
		// Another instance is refreshing this user.
		return false
	}
	defer func() {
		if err := w.lease.Release(ctx, u.UserID, holder); err != nil {
			w.logger.Warnw("failed to release refresh lease", "error", err, "user_id", u.UserID)
		}
	}()

	material, err := w.vault.Load(ctx, u.TokenRef)
	if err != nil {
		w.logger.Errorw("failed to load token material", "error", err, "user_id", u.UserID)
		return false
	}
	if material.ExpiresAt.Sub(w.now()) > w.safetyMargin {
		return false
	}

	var result *music.RefreshedToken
	err = retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		var refreshErr error
		result, refreshErr = w.refresher.Refresh(ctx, material.RefreshToken)
		return refreshErr
	})
	if err != nil {
		if errors.IsAuthExpiredError(err) {
			w.handleRevoked(ctx, u)
			return false
		}
		w.logger.Warnw("token refresh failed, will retry next sweep", "error", err, "user_id", u.UserID)
		return false
	}

	material.AccessToken = result.AccessToken
	material.ExpiresAt = result.ExpiresAt
	if result.RefreshToken != "" {
		material.RefreshToken = result.RefreshToken
	}
	if err := w.vault.Save(ctx, u.TokenRef, material); err != nil {
		w.logger.Errorw("failed to persist refreshed token material", "error", err, "user_id", u.UserID)
		return false
	}
	w.tokenCache.Invalidate(u.UserID)

	w.logger.Infow("token refreshed ahead of expiry", "user_id", u.UserID, "expires_at", result.ExpiresAt)
	return true
}

// handleRevoked severs the music connection for a user whose refresh token
// the provider rejected. The user must re-link to resume playback.
func (w *Warden) handleRevoked(ctx context.Context, u *user.User) {
	w.tokenCache.Invalidate(u.UserID)
	if err := w.userRepo.SetMusicConnected(ctx, u.UserID, false); err != nil {
		w.logger.Errorw("failed to disconnect user after revoked grant", "error", err, "user_id", u.UserID)
		return
	}
	w.logger.Errorw("refresh token revoked, music connection severed", "user_id", u.UserID)
}
