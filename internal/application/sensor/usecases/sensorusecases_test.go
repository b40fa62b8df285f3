package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resona-io/resona/internal/application/device"
	"github.com/resona-io/resona/internal/application/testutil"
	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/shared/errors"
)

// ====== Mock publisher ======

type mockPublisher struct {
	configs  []device.ConfigUpdate
	commands []device.Command
	err      error
}

func (m *mockPublisher) PublishConfig(ctx context.Context, sensorID string, cfg device.ConfigUpdate) error {
	m.configs = append(m.configs, cfg)
	return m.err
}

func (m *mockPublisher) PublishCommand(ctx context.Context, sensorID string, cmd device.Command) error {
	m.commands = append(m.commands, cmd)
	return m.err
}

func newSensor(t *testing.T, status sensor.Status) *sensor.Sensor {
	t.Helper()
	s, err := sensor.NewSensor("hall-pir-01", "usr_1", "hallway", 120, 300)
	require.NoError(t, err)
	s.Status = status
	return s
}

// ====== AnnounceRegistration ======

func TestAnnounceRegistration_ActivatesSensor(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusRegistered))
	events := testutil.NewEventRepo()
	uc := NewAnnounceRegistrationUseCase(sensors, events, testutil.NewLogger())

	err := uc.Execute(context.Background(), AnnounceRegistrationCommand{
		SensorID:        "hall-pir-01",
		OccurredAt:      time.Now().UTC(),
		FirmwareVersion: "1.4.2",
	})
	require.NoError(t, err)

	got, err := sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	assert.Equal(t, sensor.StatusActive, got.Status)

	rows := events.Events()
	require.Len(t, rows, 1)
	assert.Equal(t, motion.EventRegistration, rows[0].EventType)
	assert.Equal(t, "1.4.2", rows[0].Metadata.FirmwareVersion)
}

func TestAnnounceRegistration_RecoversFromError(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusError))
	uc := NewAnnounceRegistrationUseCase(sensors, testutil.NewEventRepo(), testutil.NewLogger())

	require.NoError(t, uc.Execute(context.Background(), AnnounceRegistrationCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Now().UTC(),
	}))

	got, err := sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	assert.Equal(t, sensor.StatusActive, got.Status)
}

func TestAnnounceRegistration_DisabledStaysDisabled(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusDisabled))
	uc := NewAnnounceRegistrationUseCase(sensors, testutil.NewEventRepo(), testutil.NewLogger())

	require.NoError(t, uc.Execute(context.Background(), AnnounceRegistrationCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Now().UTC(),
	}))

	got, err := sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	assert.Equal(t, sensor.StatusDisabled, got.Status, "a reboot must not re-enable a disabled sensor")
}

func TestAnnounceRegistration_UnknownSensor(t *testing.T) {
	uc := NewAnnounceRegistrationUseCase(testutil.NewSensorRepo(), testutil.NewEventRepo(), testutil.NewLogger())

	err := uc.Execute(context.Background(), AnnounceRegistrationCommand{SensorID: "ghost-pir"})
	assert.True(t, errors.IsNotFoundError(err))
}

// ====== RecordStatus ======

func TestRecordStatus_PersistsBattery(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	events := testutil.NewEventRepo()
	uc := NewRecordStatusUseCase(sensors, testutil.NewUserRepo(), events, testutil.NewLogger())

	level := 64
	err := uc.Execute(context.Background(), RecordStatusCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Now().UTC(),
		Metadata:   motion.Metadata{BatteryLevel: &level},
	})
	require.NoError(t, err)

	got, err := sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	require.NotNil(t, got.BatteryLevel)
	assert.Equal(t, 64, *got.BatteryLevel)

	rows := events.Events()
	require.Len(t, rows, 1)
	assert.Equal(t, motion.EventStatusReport, rows[0].EventType)
	assert.Equal(t, motion.ActionStatusRecorded, rows[0].ActionTaken)
}

func TestRecordStatus_NoBatteryInReport(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	uc := NewRecordStatusUseCase(sensors, testutil.NewUserRepo(), testutil.NewEventRepo(), testutil.NewLogger())

	require.NoError(t, uc.Execute(context.Background(), RecordStatusCommand{
		SensorID:   "hall-pir-01",
		OccurredAt: time.Now().UTC(),
	}))

	got, err := sensors.GetByID(context.Background(), "hall-pir-01")
	require.NoError(t, err)
	assert.Nil(t, got.BatteryLevel)
}

// ====== UpdateSensorConfig ======

func TestUpdateSensorConfig_AppliesAndPushes(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	pub := &mockPublisher{}
	uc := NewUpdateSensorConfigUseCase(sensors, pub, testutil.NewLogger())

	debounce := 60
	timeout := 600
	start, end, tz := "22:00", "07:00", "Europe/London"
	got, err := uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID:                 "hall-pir-01",
		UserID:                   "usr_1",
		MotionDebounceSeconds:    &debounce,
		InactivityTimeoutSeconds: &timeout,
		QuietHoursStart:          &start,
		QuietHoursEnd:            &end,
		QuietHoursTimezone:       &tz,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, got.MotionDebounceSeconds)
	assert.Equal(t, 600, got.InactivityTimeoutSeconds)
	require.NotNil(t, got.QuietHours)

	require.Len(t, pub.configs, 1)
	assert.Equal(t, 60, pub.configs[0].DebounceSeconds)
	assert.Equal(t, 600, pub.configs[0].InactivityTimeoutSec)
	assert.Equal(t, "22:00", pub.configs[0].QuietHoursStart)
	assert.False(t, pub.configs[0].Disabled)
}

func TestUpdateSensorConfig_DisableFlipsStatus(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	pub := &mockPublisher{}
	uc := NewUpdateSensorConfigUseCase(sensors, pub, testutil.NewLogger())

	disabled := false
	got, err := uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID: "hall-pir-01",
		Enabled:  &disabled,
	})
	require.NoError(t, err)
	assert.Equal(t, sensor.StatusDisabled, got.Status)
	require.Len(t, pub.configs, 1)
	assert.True(t, pub.configs[0].Disabled)

	enabled := true
	got, err = uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID: "hall-pir-01",
		Enabled:  &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, sensor.StatusActive, got.Status)
}

func TestUpdateSensorConfig_RejectsInvalidValues(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	uc := NewUpdateSensorConfigUseCase(sensors, &mockPublisher{}, testutil.NewLogger())

	bad := -5
	_, err := uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID:              "hall-pir-01",
		MotionDebounceSeconds: &bad,
	})
	assert.True(t, errors.IsValidationError(err))

	zero := 0
	_, err = uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID:                 "hall-pir-01",
		InactivityTimeoutSeconds: &zero,
	})
	assert.True(t, errors.IsValidationError(err))

	badTz := "Mars/Olympus"
	start, end := "22:00", "07:00"
	_, err = uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID:           "hall-pir-01",
		QuietHoursStart:    &start,
		QuietHoursEnd:      &end,
		QuietHoursTimezone: &badTz,
	})
	assert.True(t, errors.IsValidationError(err))
}

func TestUpdateSensorConfig_ClearsQuietHours(t *testing.T) {
	s := newSensor(t, sensor.StatusActive)
	qh, err := sensor.NewQuietHours("22:00", "07:00", "UTC")
	require.NoError(t, err)
	s.QuietHours = qh
	sensors := testutil.NewSensorRepo(s)
	uc := NewUpdateSensorConfigUseCase(sensors, &mockPublisher{}, testutil.NewLogger())

	empty := ""
	got, err := uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID:        "hall-pir-01",
		QuietHoursStart: &empty,
		QuietHoursEnd:   &empty,
	})
	require.NoError(t, err)
	assert.Nil(t, got.QuietHours)
}

func TestUpdateSensorConfig_ScopedToOwner(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	uc := NewUpdateSensorConfigUseCase(sensors, &mockPublisher{}, testutil.NewLogger())

	_, err := uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID: "hall-pir-01",
		UserID:   "usr_other",
	})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestUpdateSensorConfig_PublishFailureDoesNotFail(t *testing.T) {
	sensors := testutil.NewSensorRepo(newSensor(t, sensor.StatusActive))
	pub := &mockPublisher{err: errors.NewTransientError("broker down")}
	uc := NewUpdateSensorConfigUseCase(sensors, pub, testutil.NewLogger())

	name := "Hallway"
	got, err := uc.Execute(context.Background(), UpdateSensorConfigCommand{
		SensorID: "hall-pir-01",
		Name:     &name,
	})
	require.NoError(t, err, "the change is persisted, the retained push catches the device up later")
	assert.Equal(t, "Hallway", got.Name)
}
