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

type wardenFixture struct {
	warden    *Warden
	users     *testutil.UserRepo
	vault     *secretstore.TokenVault
	refresher *testutil.RefresherStub
	lease     *testutil.LeaseStub
	now       time.Time
}

func newWardenFixture(t *testing.T) *wardenFixture {
	t.Helper()
	f := &wardenFixture{
		users:     testutil.NewUserRepo(),
		vault:     secretstore.NewTokenVault(testutil.NewMemoryStore()),
		refresher: &testutil.RefresherStub{},
		lease:     &testutil.LeaseStub{},
		now:       time.Now().UTC(),
	}
	f.warden = NewWarden(f.users, f.vault, cache.NewTokenCache(), f.refresher, f.lease,
		5*time.Minute, 4, testutil.NewLogger())
	f.warden.now = func() time.Time { return f.now }
	return f
}

func (f *wardenFixture) addConnectedUser(t *testing.T, userID string, expiresAt time.Time) {
	t.Helper()
	u, err := user.NewUser(userID, userID+"@example.com")
	require.NoError(t, err)
	tokenRef := "sec_" + userID
	require.NoError(t, u.ConnectMusic(tokenRef))
	require.NoError(t, f.users.Create(context.Background(), u))
	require.NoError(t, f.vault.Save(context.Background(), tokenRef, &secretstore.TokenMaterial{
		RefreshToken: "refresh-" + userID,
		AccessToken:  "access-" + userID,
		ExpiresAt:    expiresAt,
	}))
}

// ====== Tests ======

func TestWarden_RefreshesWithinSafetyMargin(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(2*time.Minute))
	f.refresher.Result = &music.RefreshedToken{
		AccessToken: "access-fresh",
		ExpiresAt:   f.now.Add(time.Hour),
	}

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	material, err := f.vault.Load(context.Background(), "sec_usr_1")
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", material.AccessToken)
	assert.Equal(t, f.now.Add(time.Hour), material.ExpiresAt)
}

func TestWarden_SkipsHealthyTokens(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(time.Hour))

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, refreshed)
	assert.Zero(t, f.refresher.Calls())
}

func TestWarden_SkipsWhenLeaseHeldElsewhere(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(time.Minute))
	f.lease.Busy = true

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, refreshed)
	assert.Zero(t, f.refresher.Calls(), "another instance owns this user's refresh")
}

func TestWarden_ReleasesLeaseAfterSweep(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(time.Minute))
	f.refresher.Result = &music.RefreshedToken{
		AccessToken: "access-fresh",
		ExpiresAt:   f.now.Add(time.Hour),
	}

	_, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"usr_1"}, f.lease.Acquired)
	assert.Equal(t, []string{"usr_1"}, f.lease.Released)
}

func TestWarden_RevokedGrantSeversConnection(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(time.Minute))
	f.refresher.Err = errors.NewAuthExpiredError("invalid_grant")

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, refreshed)

	u, err := f.users.GetByID(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.False(t, u.MusicConnected)
}

func TestWarden_TransientFailureLeavesConnection(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(time.Minute))
	f.refresher.Err = errors.NewTransientError("provider 503")

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, refreshed)

	// Still connected; the next sweep tries again.
	u, err := f.users.GetByID(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.True(t, u.MusicConnected)
}

func TestWarden_SkipsUsersWithoutTokenRef(t *testing.T) {
	f := newWardenFixture(t)
	u, err := user.NewUser("usr_1", "dangling@example.com")
	require.NoError(t, err)
	// Connected flag without a token reference is a degenerate row; the
	// warden leaves it alone instead of failing the sweep.
	u.MusicConnected = true
	require.NoError(t, f.users.Create(context.Background(), u))

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, refreshed)
	assert.Empty(t, f.lease.Acquired)
}

func TestWarden_SweepsMultipleUsers(t *testing.T) {
	f := newWardenFixture(t)
	f.addConnectedUser(t, "usr_1", f.now.Add(time.Minute))
	f.addConnectedUser(t, "usr_2", f.now.Add(time.Hour))
	f.addConnectedUser(t, "usr_3", f.now.Add(4*time.Minute))
	f.refresher.Result = &music.RefreshedToken{
		AccessToken: "access-fresh",
		ExpiresAt:   f.now.Add(time.Hour),
	}

	refreshed, err := f.warden.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)
	assert.Equal(t, 2, f.refresher.Calls())
}
