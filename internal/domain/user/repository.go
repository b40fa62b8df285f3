package user

import "context"

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, userID string) (*User, error)
	Update(ctx context.Context, u *User) error

	// ListMusicConnected returns every user the token warden must keep fresh.
	ListMusicConnected(ctx context.Context) ([]*User, error)

	// SetMusicConnected flips the connection flag without rewriting the rest
	// of the record; used when a refresh token is found revoked.
	SetMusicConnected(ctx context.Context, userID string, connected bool) error
}
