package music

import (
	"context"
	stderrors "errors"
	"strings"

	"golang.org/x/oauth2"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/config"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

// SpotifyTokenRefresher exchanges refresh tokens via the provider's OAuth
// token endpoint.
type SpotifyTokenRefresher struct {
	oauthConfig *oauth2.Config
	logger      logger.Interface
}

func NewSpotifyTokenRefresher(cfg *config.SpotifyConfig, log logger.Interface) *SpotifyTokenRefresher {
	return &SpotifyTokenRefresher{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		logger: log,
	}
}

var _ music.TokenRefresher = (*SpotifyTokenRefresher)(nil)

func (r *SpotifyTokenRefresher) Refresh(ctx context.Context, refreshToken string) (*music.RefreshedToken, error) {
	source := r.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, r.classifyRefreshError(err)
	}

	refreshed := &music.RefreshedToken{
		AccessToken: token.AccessToken,
		ExpiresAt:   biztime.ToUTC(token.Expiry),
	}
	// Spotify normally keeps the refresh token stable; surface rotation when
	// the provider does issue a new one.
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		refreshed.RefreshToken = token.RefreshToken
	}
	return refreshed, nil
}

// classifyRefreshError maps token-endpoint failures onto the shared taxonomy.
// invalid_grant means the user revoked access; that is terminal for this
// connection, not retryable.
func (r *SpotifyTokenRefresher) classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !stderrors.As(err, &retrieveErr) {
		return errors.NewTransientError("token endpoint unreachable", err.Error())
	}

	body := string(retrieveErr.Body)
	switch {
	case retrieveErr.ErrorCode == "invalid_grant" || strings.Contains(body, "invalid_grant"):
		return errors.NewAuthExpiredError("refresh token revoked by provider")
	case retrieveErr.Response != nil && retrieveErr.Response.StatusCode == 429:
		return errors.NewRateLimitedError("token endpoint rate limit", parseRetryAfter(retrieveErr.Response))
	case retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500:
		return errors.NewTransientError("token endpoint unavailable")
	default:
		r.logger.Warnw("unexpected token endpoint failure", "error_code", retrieveErr.ErrorCode)
		return errors.NewTransientError("token refresh failed", retrieveErr.ErrorCode)
	}
}
