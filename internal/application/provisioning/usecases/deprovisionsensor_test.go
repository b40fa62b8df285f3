package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/application/testutil"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/shared/errors"
)

// ====== Fixture ======

type deprovisionFixture struct {
	uc       *DeprovisionSensorUseCase
	sensors  *testutil.SensorRepo
	sessions *testutil.SessionRepo
	plane    *mockControlPlane
}

func newDeprovisionFixture(t *testing.T, sensors ...*sensor.Sensor) *deprovisionFixture {
	t.Helper()
	f := &deprovisionFixture{
		sensors:  testutil.NewSensorRepo(sensors...),
		sessions: testutil.NewSessionRepo(),
		plane:    newMockControlPlane(),
	}
	f.uc = NewDeprovisionSensorUseCase(f.sensors, f.sessions, f.plane, testutil.NewLogger())
	return f
}

func provisionedSensor(t *testing.T) *sensor.Sensor {
	t.Helper()
	s, err := sensor.NewSensor("hall-pir-01", "usr_1", "hallway", 120, 300)
	require.NoError(t, err)
	s.ThingHandle = "sensor-hall-pir-01"
	s.CertificateHandle = "fp-hall-pir-01"
	return s
}

// ====== Tests ======

func TestDeprovisionSensor_TearsDownInReverseOrder(t *testing.T) {
	f := newDeprovisionFixture(t, provisionedSensor(t))

	err := f.uc.Execute(context.Background(), DeprovisionSensorCommand{SensorID: "hall-pir-01"})
	require.NoError(t, err)

	// Deactivate first so the device cannot reconnect mid-teardown.
	assert.Equal(t, []string{
		"deactivate-certificate",
		"detach-policy",
		"delete-certificate",
		"delete-thing",
	}, f.plane.calls)

	_, err = f.sensors.GetByID(context.Background(), "hall-pir-01")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDeprovisionSensor_ClosesActiveSession(t *testing.T) {
	f := newDeprovisionFixture(t, provisionedSensor(t))
	sess, err := session.Open("hall-pir-01", "usr_1", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessions.CreateActive(context.Background(), sess))

	require.NoError(t, f.uc.Execute(context.Background(), DeprovisionSensorCommand{SensorID: "hall-pir-01"}))

	got, err := f.sessions.GetByID(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status)
}

func TestDeprovisionSensor_NotFoundStillSweepsBroker(t *testing.T) {
	f := newDeprovisionFixture(t)

	err := f.uc.Execute(context.Background(), DeprovisionSensorCommand{SensorID: "ghost-pir"})
	assert.True(t, errors.IsNotFoundError(err))

	// No certificate handle is known, so only the derived thing name can be
	// swept.
	assert.Equal(t, []string{"delete-thing"}, f.plane.calls)
}

func TestDeprovisionSensor_BrokerFailuresDoNotBlockDeletion(t *testing.T) {
	f := newDeprovisionFixture(t, provisionedSensor(t))
	f.plane.failOn["delete-certificate"] = errors.NewTransientError("broker unavailable")
	f.plane.failOn["delete-thing"] = errors.NewTransientError("broker unavailable")

	err := f.uc.Execute(context.Background(), DeprovisionSensorCommand{SensorID: "hall-pir-01"})
	require.NoError(t, err, "stranded broker state is retried later, the record still goes")

	_, err = f.sensors.GetByID(context.Background(), "hall-pir-01")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDeprovisionSensor_ScopedToOwner(t *testing.T) {
	f := newDeprovisionFixture(t, provisionedSensor(t))

	err := f.uc.Execute(context.Background(), DeprovisionSensorCommand{
		SensorID: "hall-pir-01",
		UserID:   "usr_other",
	})
	assert.True(t, errors.IsNotFoundError(err), "ownership mismatches read as absence, not as forbidden")

	// The sensor survives and the broker is untouched.
	_, err = f.sensors.GetByID(context.Background(), "hall-pir-01")
	assert.NoError(t, err)
	assert.Empty(t, f.plane.calls)
}

func TestDeprovisionSensor_MissingHandlesFallBackToDerivedNames(t *testing.T) {
	s, err := sensor.NewSensor("hall-pir-01", "usr_1", "hallway", 120, 300)
	require.NoError(t, err)
	// Provisioned by an older build that never recorded handles.
	f := newDeprovisionFixture(t, s)

	require.NoError(t, f.uc.Execute(context.Background(), DeprovisionSensorCommand{SensorID: "hall-pir-01"}))
	assert.Equal(t, []string{"delete-thing"}, f.plane.calls)
}
