package usecases

import (
	"context"
	"time"

	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/shared/logger"
)

// lowBatteryThreshold is the percentage below which owners get a warning.
const lowBatteryThreshold = 20

// RecordStatusCommand is a periodic device health report.
type RecordStatusCommand struct {
	SensorID   string
	OccurredAt time.Time
	Metadata   motion.Metadata
}

// RecordStatusUseCase persists device telemetry and flags low batteries.
type RecordStatusUseCase struct {
	sensorRepo sensor.Repository
	userRepo   user.Repository
	eventRepo  motion.Repository
	logger     logger.Interface
}

func NewRecordStatusUseCase(
	sensorRepo sensor.Repository,
	userRepo user.Repository,
	eventRepo motion.Repository,
	log logger.Interface,
) *RecordStatusUseCase {
	return &RecordStatusUseCase{
		sensorRepo: sensorRepo,
		userRepo:   userRepo,
		eventRepo:  eventRepo,
		logger:     log,
	}
}

func (uc *RecordStatusUseCase) Execute(ctx context.Context, cmd RecordStatusCommand) error {
	sens, err := uc.sensorRepo.GetByID(ctx, cmd.SensorID)
	if err != nil {
		return err
	}

	if cmd.Metadata.BatteryLevel != nil {
		level := *cmd.Metadata.BatteryLevel
		if err := uc.sensorRepo.UpdateBatteryLevel(ctx, sens.SensorID, level); err != nil {
			uc.logger.Warnw("failed to record battery level", "error", err, "sensor_id", sens.SensorID)
		}
		if level <= lowBatteryThreshold {
			uc.notifyLowBattery(ctx, sens, level)
		}
	}

	e := motion.NewEvent(sens.SensorID, sens.UserID, "", cmd.OccurredAt, motion.EventStatusReport, motion.ActionStatusRecorded, cmd.Metadata)
	if err := uc.eventRepo.Append(ctx, e); err != nil {
		uc.logger.Errorw("failed to audit status report", "error", err, "sensor_id", sens.SensorID)
	}
	return nil
}

func (uc *RecordStatusUseCase) notifyLowBattery(ctx context.Context, sens *sensor.Sensor, level int) {
	owner, err := uc.userRepo.GetByID(ctx, sens.UserID)
	if err != nil {
		uc.logger.Warnw("failed to load owner for low-battery check", "error", err, "sensor_id", sens.SensorID)
		return
	}
	if !owner.Preferences.NotifyOnLowBattery {
		return
	}
	// Notification delivery is an operator concern for now; the structured
	// log line is what alerting keys on.
	uc.logger.Warnw("sensor battery low",
		"sensor_id", sens.SensorID,
		"user_id", sens.UserID,
		"battery_level", level,
	)
}
