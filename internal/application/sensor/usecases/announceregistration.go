// Package usecases implements sensor lifecycle flows that sit outside the
// motion hot path: registration announcements, status reports, and config
// pushes.
package usecases

import (
	"context"
	"time"

	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/shared/logger"
)

// AnnounceRegistrationCommand is a device's boot announcement on its register
// topic.
type AnnounceRegistrationCommand struct {
	SensorID        string
	OccurredAt      time.Time
	FirmwareVersion string
}

// AnnounceRegistrationUseCase records that a provisioned device came online
// and moves it from registered to active.
type AnnounceRegistrationUseCase struct {
	sensorRepo sensor.Repository
	eventRepo  motion.Repository
	logger     logger.Interface
}

func NewAnnounceRegistrationUseCase(
	sensorRepo sensor.Repository,
	eventRepo motion.Repository,
	log logger.Interface,
) *AnnounceRegistrationUseCase {
	return &AnnounceRegistrationUseCase{
		sensorRepo: sensorRepo,
		eventRepo:  eventRepo,
		logger:     log,
	}
}

func (uc *AnnounceRegistrationUseCase) Execute(ctx context.Context, cmd AnnounceRegistrationCommand) error {
	sens, err := uc.sensorRepo.GetByID(ctx, cmd.SensorID)
	if err != nil {
		return err
	}

	// Disabled sensors stay disabled across reboots.
	if sens.Status == sensor.StatusRegistered || sens.Status == sensor.StatusError {
		if err := uc.sensorRepo.UpdateStatus(ctx, sens.SensorID, sensor.StatusActive); err != nil {
			uc.logger.Errorw("failed to activate sensor on registration", "error", err, "sensor_id", sens.SensorID)
			return err
		}
	}

	e := motion.NewEvent(sens.SensorID, sens.UserID, "", cmd.OccurredAt, motion.EventRegistration, motion.ActionRegistrationAnnounced, motion.Metadata{
		FirmwareVersion: cmd.FirmwareVersion,
	})
	if err := uc.eventRepo.Append(ctx, e); err != nil {
		uc.logger.Errorw("failed to audit registration", "error", err, "sensor_id", sens.SensorID)
	}

	uc.logger.Infow("sensor announced registration",
		"sensor_id", sens.SensorID,
		"firmware_version", cmd.FirmwareVersion,
	)
	return nil
}
