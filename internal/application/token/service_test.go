package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/application/testutil"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/cache"
	"github.com/resona-io/resona/internal/infrastructure/secretstore"
	"github.com/resona-io/resona/internal/shared/errors"
)

// ====== Fixture ======

type serviceFixture struct {
	svc       *Service
	users     *testutil.UserRepo
	vault     *secretstore.TokenVault
	refresher *testutil.RefresherStub
	now       time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	owner, err := user.NewUser("usr_1", "owner@example.com")
	require.NoError(t, err)
	require.NoError(t, owner.ConnectMusic("sec_tok1"))

	f := &serviceFixture{
		users:     testutil.NewUserRepo(owner),
		vault:     secretstore.NewTokenVault(testutil.NewMemoryStore()),
		refresher: &testutil.RefresherStub{},
		// The token cache keeps its own wall clock, so the fixture clock must
		// stay near real time for cache expiries to behave.
		now: time.Now().UTC(),
	}
	f.svc = NewService(f.users, f.vault, cache.NewTokenCache(), f.refresher, testutil.NewLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *serviceFixture) seedMaterial(t *testing.T, accessToken string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.vault.Save(context.Background(), "sec_tok1", &secretstore.TokenMaterial{
		RefreshToken: "refresh-1",
		AccessToken:  accessToken,
		ExpiresAt:    expiresAt,
	}))
}

// ====== Tests ======

func TestAccessTokenForUser_ServesStoredToken(t *testing.T) {
	f := newServiceFixture(t)
	f.seedMaterial(t, "access-1", f.now.Add(time.Hour))

	got, err := f.svc.AccessTokenForUser(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)
	assert.Zero(t, f.refresher.Calls())
}

func TestAccessTokenForUser_RefreshesNearExpiry(t *testing.T) {
	f := newServiceFixture(t)
	// Ten seconds of life left is inside the slack; the caller would hold a
	// token that dies mid-request.
	f.seedMaterial(t, "access-stale", f.now.Add(10*time.Second))
	f.refresher.Result = &music.RefreshedToken{
		AccessToken: "access-fresh",
		ExpiresAt:   f.now.Add(time.Hour),
	}

	got, err := f.svc.AccessTokenForUser(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", got)
	assert.Equal(t, 1, f.refresher.Calls())

	// The rotated material is persisted.
	material, err := f.vault.Load(context.Background(), "sec_tok1")
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", material.AccessToken)
	assert.Equal(t, "refresh-1", material.RefreshToken, "an unrotated refresh token is kept")
}

func TestAccessTokenForUser_PersistsRotatedRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	f.seedMaterial(t, "", f.now.Add(time.Hour))
	f.refresher.Result = &music.RefreshedToken{
		AccessToken:  "access-fresh",
		RefreshToken: "refresh-2",
		ExpiresAt:    f.now.Add(time.Hour),
	}

	_, err := f.svc.AccessTokenForUser(context.Background(), "usr_1")
	require.NoError(t, err)

	material, err := f.vault.Load(context.Background(), "sec_tok1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", material.RefreshToken)
}

func TestAccessTokenForUser_NoConnection(t *testing.T) {
	f := newServiceFixture(t)
	unlinked, err := user.NewUser("usr_2", "new@example.com")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), unlinked))

	_, err = f.svc.AccessTokenForUser(context.Background(), "usr_2")
	assert.True(t, errors.IsAuthExpiredError(err))
}

func TestAccessTokenForUser_UnknownUser(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.AccessTokenForUser(context.Background(), "usr_ghost")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestAccessTokenForUser_RevokedGrantDisconnects(t *testing.T) {
	f := newServiceFixture(t)
	f.seedMaterial(t, "", f.now.Add(time.Hour))
	f.refresher.Err = errors.NewAuthExpiredError("invalid_grant")

	_, err := f.svc.AccessTokenForUser(context.Background(), "usr_1")
	assert.True(t, errors.IsAuthExpiredError(err))

	// The user is severed from the music service and must re-link.
	u, err := f.users.GetByID(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.False(t, u.MusicConnected)
	assert.Equal(t, []string{"usr_1"}, f.users.SetMusicConnectedCalls)
}

func TestAccessTokenForUser_CachesAcrossCalls(t *testing.T) {
	f := newServiceFixture(t)
	f.seedMaterial(t, "access-1", f.now.Add(time.Hour))

	_, err := f.svc.AccessTokenForUser(context.Background(), "usr_1")
	require.NoError(t, err)

	// Rewrite the vault behind the cache; the cached token is still served.
	f.seedMaterial(t, "access-2", f.now.Add(time.Hour))
	got, err := f.svc.AccessTokenForUser(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", got)

	// Invalidate forces the next read back through the vault.
	f.svc.Invalidate("usr_1")
	got, err = f.svc.AccessTokenForUser(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", got)
}
