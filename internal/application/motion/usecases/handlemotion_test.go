package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/application/testutil"
	"github.com/resona-io/resona/internal/application/token"
	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/cache"
	"github.com/resona-io/resona/internal/infrastructure/secretstore"
	"github.com/resona-io/resona/internal/shared/errors"
)

// ====== Fixture ======

type motionFixture struct {
	uc       *HandleMotionUseCase
	sensors  *testutil.SensorRepo
	users    *testutil.UserRepo
	sessions *testutil.SessionRepo
	events   *testutil.EventRepo
	player   *testutil.PlayerStub
}

func newMotionFixture(t *testing.T, sens *sensor.Sensor) *motionFixture {
	t.Helper()

	owner, err := user.NewUser("usr_1", "owner@example.com")
	require.NoError(t, err)
	require.NoError(t, owner.ConnectMusic("sec_tok1"))

	users := testutil.NewUserRepo(owner)

	vault := secretstore.NewTokenVault(testutil.NewMemoryStore())
	require.NoError(t, vault.Save(context.Background(), "sec_tok1", &secretstore.TokenMaterial{
		RefreshToken: "refresh-1",
		AccessToken:  "access-1",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}))
	tokens := token.NewService(users, vault, cache.NewTokenCache(), &testutil.RefresherStub{}, testutil.NewLogger())

	f := &motionFixture{
		sensors:  testutil.NewSensorRepo(sens),
		users:    users,
		sessions: testutil.NewSessionRepo(),
		events:   testutil.NewEventRepo(),
		player:   &testutil.PlayerStub{},
	}
	f.uc = NewHandleMotionUseCase(f.sensors, users, f.sessions, f.events, tokens, f.player, testutil.NewLogger())
	return f
}

func newTestSensor(t *testing.T) *sensor.Sensor {
	t.Helper()
	s, err := sensor.NewSensor("hall-pir-01", "usr_1", "hallway", 120, 300)
	require.NoError(t, err)
	s.PlaybackTargetID = "device-1"
	s.PlaybackContextRef = "spotify:playlist:morning"
	return s
}

// ====== Tests ======

func TestHandleMotion_OpensSessionAndStartsPlayback(t *testing.T) {
	f := newMotionFixture(t, newTestSensor(t))
	occurredAt := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: occurredAt,
	})
	require.NoError(t, err)
	assert.Equal(t, motion.EventDetected, result.EventType)
	assert.Equal(t, motion.ActionSessionOpened, result.ActionTaken)
	require.NotEmpty(t, result.SessionID)

	sess, err := f.sessions.GetByID(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, sess.Status)
	assert.Equal(t, occurredAt, sess.StartAt)
	assert.True(t, sess.PlaybackStarted)

	_, starts, _ := f.player.Calls()
	assert.Equal(t, 1, starts)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, motion.EventDetected, events[0].EventType)
	assert.Equal(t, motion.ActionSessionOpened, events[0].ActionTaken)
	assert.Equal(t, result.SessionID, events[0].SessionID)

	// The sensor watermark follows the event timestamp.
	sens, err := f.sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	require.NotNil(t, sens.LastMotionAt)
	assert.Equal(t, occurredAt, *sens.LastMotionAt)
}

func TestHandleMotion_ExtendsExistingSession(t *testing.T) {
	sens := newTestSensor(t)
	f := newMotionFixture(t, sens)
	startAt := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)

	existing, err := session.Open("hall-pir-01", "usr_1", startAt)
	require.NoError(t, err)
	existing.PlaybackStarted = true
	require.NoError(t, f.sessions.CreateActive(context.Background(), existing))

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: startAt.Add(3 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, motion.ActionSessionExtended, result.ActionTaken)
	assert.Equal(t, existing.SessionID, result.SessionID)

	sess, err := f.sessions.GetByID(context.Background(), existing.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.MotionCount)
	assert.Equal(t, startAt.Add(3*time.Minute), sess.LastMotionAt)

	// Playback is already going; no provider traffic at all.
	states, starts, _ := f.player.Calls()
	assert.Zero(t, states)
	assert.Zero(t, starts)
}

func playbackPlaying() *music.PlaybackState {
	return &music.PlaybackState{
		IsPlaying:  true,
		DeviceID:   "device-9",
		DeviceName: "Kitchen speaker",
		TrackURI:   "spotify:track:manual",
	}
}

func TestHandleMotion_AlreadyPlaying(t *testing.T) {
	f := newMotionFixture(t, newTestSensor(t))
	f.player.State = playbackPlaying()

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, motion.ActionSessionOpened, result.ActionTaken)

	// Whatever the user chose to play stays; the session still records that
	// music is going so the reaper pauses it later.
	_, starts, _ := f.player.Calls()
	assert.Zero(t, starts)
	sess, err := f.sessions.GetByID(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.PlaybackStarted)
}

func TestHandleMotion_DebounceSuppressed(t *testing.T) {
	sens := newTestSensor(t)
	last := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	sens.LastMotionAt = &last
	f := newMotionFixture(t, sens)

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: last.Add(119 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, motion.EventDebounced, result.EventType)
	assert.Equal(t, motion.ActionSuppressed, result.ActionTaken)
	assert.Empty(t, result.SessionID)

	// A suppressed event must not advance the watermark, or a burst of
	// deliveries would extend the debounce window forever.
	got, err := f.sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	assert.Equal(t, last, *got.LastMotionAt)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, motion.EventDebounced, events[0].EventType)
}

func TestHandleMotion_QuietHoursSuppressed(t *testing.T) {
	sens := newTestSensor(t)
	qh, err := sensor.NewQuietHours("22:00", "07:00", "UTC")
	require.NoError(t, err)
	sens.QuietHours = qh
	f := newMotionFixture(t, sens)

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Date(2026, 2, 1, 23, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, motion.EventQuietHours, result.EventType)
	assert.Equal(t, motion.ActionSuppressed, result.ActionTaken)

	_, starts, _ := f.player.Calls()
	assert.Zero(t, starts)
}

func TestHandleMotion_DisabledSuppressed(t *testing.T) {
	sens := newTestSensor(t)
	sens.Enabled = false
	f := newMotionFixture(t, sens)

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, motion.EventDisabledSuppressed, result.EventType)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, motion.EventDisabledSuppressed, events[0].EventType)
}

func TestHandleMotion_UnknownSensor(t *testing.T) {
	f := newMotionFixture(t, newTestSensor(t))

	_, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "ghost-sensor",
		OccurredAt: time.Now().UTC(),
	})
	assert.True(t, errors.IsNotFoundError(err))
	assert.Empty(t, f.events.Events(), "nothing to audit against an unknown sensor")
}

func TestHandleMotion_PlaybackFailureKeepsBookkeeping(t *testing.T) {
	f := newMotionFixture(t, newTestSensor(t))
	f.player.StartErr = errors.NewNotFoundError("no active device")

	occurredAt := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: occurredAt,
	})
	require.NoError(t, err, "a provider failure must not fail the delivery")
	assert.Equal(t, motion.ActionSessionOpened, result.ActionTaken)

	sess, err := f.sessions.GetByID(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.False(t, sess.PlaybackStarted)
	require.Len(t, f.events.Events(), 1)
}

// raceSessionRepo simulates a concurrent open: the first active-session read
// misses, the insert conflicts, and the re-read adopts the winner's row.
type raceSessionRepo struct {
	*testutil.SessionRepo
	reads int
}

func (r *raceSessionRepo) GetActiveBySensorID(ctx context.Context, sensorID string) (*session.Session, error) {
	r.reads++
	if r.reads == 1 {
		return nil, errors.NewNotFoundError("no active session", sensorID)
	}
	return r.SessionRepo.GetActiveBySensorID(ctx, sensorID)
}

func TestHandleMotion_AdoptsConcurrentlyOpenedSession(t *testing.T) {
	f := newMotionFixture(t, newTestSensor(t))

	startAt := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	winner, err := session.Open("hall-pir-01", "usr_1", startAt)
	require.NoError(t, err)
	winner.PlaybackStarted = true
	require.NoError(t, f.sessions.CreateActive(context.Background(), winner))

	f.uc.sessionRepo = &raceSessionRepo{SessionRepo: f.sessions}

	result, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: startAt.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, motion.ActionSessionExtended, result.ActionTaken)
	assert.Equal(t, winner.SessionID, result.SessionID)
}

func TestHandleMotion_RecordsBatteryLevel(t *testing.T) {
	f := newMotionFixture(t, newTestSensor(t))
	level := 87

	_, err := f.uc.Execute(context.Background(), HandleMotionCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC),
		Metadata:   motion.Metadata{BatteryLevel: &level},
	})
	require.NoError(t, err)

	sens, err := f.sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	require.NotNil(t, sens.BatteryLevel)
	assert.Equal(t, 87, *sens.BatteryLevel)
}
