// Package token manages music-provider credentials: a read-through access
// token path for the motion handlers and a background warden that refreshes
// tokens before they expire.
package token

import (
	"context"
	"time"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/cache"
	"github.com/resona-io/resona/internal/infrastructure/secretstore"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/retry"
)

// refreshSlack is the minimum remaining lifetime an access token must have to
// be handed out without a defensive refresh.
const refreshSlack = 30 * time.Second

// Service hands out valid access tokens for a user's music connection.
type Service struct {
	userRepo  user.Repository
	vault     *secretstore.TokenVault
	cache     *cache.TokenCache
	refresher music.TokenRefresher
	logger    logger.Interface

	now func() time.Time
}

func NewService(
	userRepo user.Repository,
	vault *secretstore.TokenVault,
	tokenCache *cache.TokenCache,
	refresher music.TokenRefresher,
	log logger.Interface,
) *Service {
	return &Service{
		userRepo:  userRepo,
		vault:     vault,
		cache:     tokenCache,
		refresher: refresher,
		logger:    log,
		now:       biztime.NowUTC,
	}
}

// AccessTokenForUser returns a usable access token for the user. Cached
// tokens are served directly; a token at or past its expiry slack triggers a
// synchronous refresh before anything is returned, so callers never hold a
// token that dies mid-request. A revoked grant disconnects the user and
// surfaces as AuthExpired.
func (s *Service) AccessTokenForUser(ctx context.Context, userID string) (string, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !u.MusicConnected || u.TokenRef == "" {
		return "", errors.NewAuthExpiredError("user has no music connection", userID)
	}

	return s.cache.GetOrLoad(ctx, userID, func(ctx context.Context) (string, time.Time, error) {
		material, err := s.vault.Load(ctx, u.TokenRef)
		if err != nil {
			return "", time.Time{}, err
		}

		if material.AccessToken != "" && material.ExpiresAt.Sub(s.now()) > refreshSlack {
			return material.AccessToken, material.ExpiresAt, nil
		}

		refreshed, err := s.refreshMaterial(ctx, userID, u.TokenRef, material)
		if err != nil {
			return "", time.Time{}, err
		}
		return refreshed.AccessToken, refreshed.ExpiresAt, nil
	})
}

// Invalidate drops the user's cached token, forcing the next read through the
// vault. Called when the provider rejects a token mid-flight.
func (s *Service) Invalidate(userID string) {
	s.cache.Invalidate(userID)
}

// refreshMaterial exchanges the refresh token, persists the rotated material,
// and handles revocation by severing the user's music connection.
func (s *Service) refreshMaterial(ctx context.Context, userID, tokenRef string, material *secretstore.TokenMaterial) (*secretstore.TokenMaterial, error) {
	var refreshed *music.RefreshedToken
	err := retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		var refreshErr error
		refreshed, refreshErr = s.refresher.Refresh(ctx, material.RefreshToken)
		return refreshErr
	})
	if err != nil {
		if errors.IsAuthExpiredError(err) {
			s.disconnect(ctx, userID)
		}
		return nil, err
	}

	material.AccessToken = refreshed.AccessToken
	material.ExpiresAt = refreshed.ExpiresAt
	if refreshed.RefreshToken != "" {
		material.RefreshToken = refreshed.RefreshToken
	}
	if err := s.vault.Save(ctx, tokenRef, material); err != nil {
		// The refreshed token is still valid; serving it beats failing the
		// caller over a persistence hiccup.
		s.logger.Errorw("failed to persist refreshed token material", "error", err, "user_id", userID)
	}

	s.logger.Infow("access token refreshed", "user_id", userID, "expires_at", refreshed.ExpiresAt)
	return material, nil
}

func (s *Service) disconnect(ctx context.Context, userID string) {
	s.cache.Invalidate(userID)
	if err := s.userRepo.SetMusicConnected(ctx, userID, false); err != nil {
		s.logger.Errorw("failed to mark user disconnected after revoked grant", "error", err, "user_id", userID)
		return
	}
	s.logger.Warnw("music connection severed, refresh token revoked by provider", "user_id", userID)
}
