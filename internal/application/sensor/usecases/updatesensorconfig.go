package usecases

import (
	"context"

	"github.com/resona-io/resona/internal/application/device"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

// UpdateSensorConfigCommand carries the mutable sensor settings. Nil fields
// are left unchanged.
type UpdateSensorConfigCommand struct {
	SensorID string
	UserID   string

	Name                     *string
	Location                 *string
	Enabled                  *bool
	MotionDebounceSeconds    *int
	InactivityTimeoutSeconds *int
	QuietHoursStart          *string
	QuietHoursEnd            *string
	QuietHoursTimezone       *string
	PlaybackTargetID         *string
	PlaybackContextRef       *string
}

// UpdateSensorConfigUseCase applies a config change and pushes the
// device-facing slice of it down to the sensor.
type UpdateSensorConfigUseCase struct {
	sensorRepo sensor.Repository
	publisher  device.Publisher
	logger     logger.Interface
}

func NewUpdateSensorConfigUseCase(
	sensorRepo sensor.Repository,
	publisher device.Publisher,
	log logger.Interface,
) *UpdateSensorConfigUseCase {
	return &UpdateSensorConfigUseCase{
		sensorRepo: sensorRepo,
		publisher:  publisher,
		logger:     log,
	}
}

func (uc *UpdateSensorConfigUseCase) Execute(ctx context.Context, cmd UpdateSensorConfigCommand) (*sensor.Sensor, error) {
	sens, err := uc.sensorRepo.GetByID(ctx, cmd.SensorID)
	if err != nil {
		return nil, err
	}
	if cmd.UserID != "" && sens.UserID != cmd.UserID {
		return nil, errors.NewNotFoundError("sensor not found", cmd.SensorID)
	}

	if err := uc.apply(sens, cmd); err != nil {
		return nil, err
	}
	sens.UpdatedAt = biztime.NowUTC()

	if err := uc.sensorRepo.Update(ctx, sens); err != nil {
		return nil, err
	}

	// Config push is best-effort: the retained message catches up an offline
	// device, and a broker hiccup must not fail the API call that already
	// persisted the change.
	update := device.ConfigUpdate{
		DebounceSeconds:      sens.MotionDebounceSeconds,
		InactivityTimeoutSec: sens.InactivityTimeoutSeconds,
		Disabled:             !sens.Enabled,
	}
	if sens.QuietHours != nil {
		update.QuietHoursStart = sens.QuietHours.Start
		update.QuietHoursEnd = sens.QuietHours.End
	}
	if err := uc.publisher.PublishConfig(ctx, sens.SensorID, update); err != nil {
		uc.logger.Warnw("failed to push config to sensor", "error", err, "sensor_id", sens.SensorID)
	}

	uc.logger.Infow("sensor config updated", "sensor_id", sens.SensorID)
	return sens, nil
}

func (uc *UpdateSensorConfigUseCase) apply(sens *sensor.Sensor, cmd UpdateSensorConfigCommand) error {
	if cmd.Name != nil {
		sens.Name = *cmd.Name
	}
	if cmd.Location != nil {
		sens.Location = *cmd.Location
	}
	if cmd.Enabled != nil {
		sens.Enabled = *cmd.Enabled
		if *cmd.Enabled {
			if sens.Status == sensor.StatusDisabled {
				sens.Status = sensor.StatusActive
			}
		} else {
			sens.Status = sensor.StatusDisabled
		}
	}
	if cmd.MotionDebounceSeconds != nil {
		if *cmd.MotionDebounceSeconds < 0 {
			return errors.NewValidationError("motion debounce must not be negative")
		}
		sens.MotionDebounceSeconds = *cmd.MotionDebounceSeconds
	}
	if cmd.InactivityTimeoutSeconds != nil {
		if *cmd.InactivityTimeoutSeconds <= 0 {
			return errors.NewValidationError("inactivity timeout must be positive")
		}
		sens.InactivityTimeoutSeconds = *cmd.InactivityTimeoutSeconds
	}
	if cmd.PlaybackTargetID != nil {
		sens.PlaybackTargetID = *cmd.PlaybackTargetID
	}
	if cmd.PlaybackContextRef != nil {
		sens.PlaybackContextRef = *cmd.PlaybackContextRef
	}

	if cmd.QuietHoursStart != nil || cmd.QuietHoursEnd != nil || cmd.QuietHoursTimezone != nil {
		start, end, tz := "", "", ""
		if sens.QuietHours != nil {
			start, end, tz = sens.QuietHours.Start, sens.QuietHours.End, sens.QuietHours.Timezone
		}
		if cmd.QuietHoursStart != nil {
			start = *cmd.QuietHoursStart
		}
		if cmd.QuietHoursEnd != nil {
			end = *cmd.QuietHoursEnd
		}
		if cmd.QuietHoursTimezone != nil {
			tz = *cmd.QuietHoursTimezone
		}
		if start == "" && end == "" {
			sens.QuietHours = nil
		} else {
			qh, err := sensor.NewQuietHours(start, end, tz)
			if err != nil {
				return errors.NewValidationError("invalid quiet hours", err.Error())
			}
			sens.QuietHours = qh
		}
	}
	return nil
}
