// Package music defines the playback-provider port. Implementations live in
// infrastructure; the orchestrator only sees these types.
package music

import (
	"context"
	"time"
)

// PlaybackState is the provider's view of what is currently playing.
// A nil state from GetPlaybackState means no active device at all.
type PlaybackState struct {
	IsPlaying  bool
	DeviceID   string
	DeviceName string
	TrackURI   string
}

// Device is an available playback target.
type Device struct {
	ID            string
	Name          string
	Type          string
	IsActive      bool
	IsRestricted  bool
	VolumePercent int
}

// RefreshedToken is the result of exchanging a refresh token.
// RefreshToken is non-empty only when the provider rotated it.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service is the playback control surface. All calls take a bearer access
// token; callers obtain it from the token service, never from storage
// directly. Errors carry the shared taxonomy: auth failures come back as
// AuthExpired, provider throttling as RateLimited with a retry hint, and
// provider outages as Transient.
type Service interface {
	// GetPlaybackState returns the current state, or nil when the account has
	// no active device.
	GetPlaybackState(ctx context.Context, accessToken string) (*PlaybackState, error)

	// StartPlayback starts or resumes playback of contextURI on the device.
	// Empty deviceID targets the provider's current active device; empty
	// contextURI resumes whatever was playing.
	StartPlayback(ctx context.Context, accessToken, deviceID, contextURI string) error

	// PausePlayback pauses the active device. Pausing when nothing is playing
	// or no device is active is not an error.
	PausePlayback(ctx context.Context, accessToken string) error

	// ListDevices returns the account's available playback devices.
	ListDevices(ctx context.Context, accessToken string) ([]Device, error)
}

// TokenRefresher exchanges a long-lived refresh token for a fresh access
// token. A revoked grant surfaces as AuthExpired, which callers treat as
// "user must reconnect".
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error)
}
