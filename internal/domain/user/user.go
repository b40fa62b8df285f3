// Package user holds the User aggregate: the owner of sensors and of the
// music-service connection.
package user

import (
	"fmt"
	"time"

	"github.com/resona-io/resona/internal/shared/biztime"
)

// Preferences are per-user defaults applied to newly provisioned sensors,
// plus notification switches.
type Preferences struct {
	DefaultMotionDebounceSeconds    int
	DefaultInactivityTimeoutSeconds int
	QuietHoursStart                 string
	QuietHoursEnd                   string
	QuietHoursTimezone              string
	NotifyOnLowBattery              bool
}

// User owns sensors and, when MusicConnected, a token reference into the
// secret store.
type User struct {
	UserID string
	Email  string

	MusicConnected bool
	TokenRef       string

	Preferences Preferences

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser builds a user with sane sensor defaults and no music connection.
func NewUser(userID, email string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	now := biztime.NowUTC()
	return &User{
		UserID: userID,
		Email:  email,
		Preferences: Preferences{
			DefaultMotionDebounceSeconds:    120,
			DefaultInactivityTimeoutSeconds: 300,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ConnectMusic records a successful music-service link. The token reference
// must already point at stored credential material.
func (u *User) ConnectMusic(tokenRef string) error {
	if tokenRef == "" {
		return fmt.Errorf("token reference is required to connect music service")
	}
	u.MusicConnected = true
	u.TokenRef = tokenRef
	u.UpdatedAt = biztime.NowUTC()
	return nil
}

// DisconnectMusic severs the music-service link, e.g. after the refresh token
// is revoked upstream. The token reference is kept so the secret can still be
// cleaned up.
func (u *User) DisconnectMusic() {
	u.MusicConnected = false
	u.UpdatedAt = biztime.NowUTC()
}
