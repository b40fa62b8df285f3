package mappers

import (
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
)

// SensorMapper handles the conversion between Sensor domain entities and
// persistence models.
type SensorMapper interface {
	ToModel(entity *sensor.Sensor) *models.SensorModel
	ToDomain(model *models.SensorModel) *sensor.Sensor
}

type sensorMapper struct{}

// NewSensorMapper creates a new SensorMapper.
func NewSensorMapper() SensorMapper {
	return &sensorMapper{}
}

func (m *sensorMapper) ToModel(entity *sensor.Sensor) *models.SensorModel {
	if entity == nil {
		return nil
	}
	model := &models.SensorModel{
		SensorID:                 entity.SensorID,
		UserID:                   entity.UserID,
		Name:                     entity.Name,
		Location:                 entity.Location,
		Enabled:                  entity.Enabled,
		MotionDebounceSeconds:    entity.MotionDebounceSeconds,
		InactivityTimeoutSeconds: entity.InactivityTimeoutSeconds,
		PlaybackTargetID:         entity.PlaybackTargetID,
		PlaybackContextRef:       entity.PlaybackContextRef,
		LastMotionAt:             entity.LastMotionAt,
		Status:                   string(entity.Status),
		ThingHandle:              entity.ThingHandle,
		CertificateHandle:        entity.CertificateHandle,
		BatteryLevel:             entity.BatteryLevel,
		CreatedAt:                entity.CreatedAt,
		UpdatedAt:                entity.UpdatedAt,
	}
	if entity.QuietHours != nil {
		model.QuietHoursStart = entity.QuietHours.Start
		model.QuietHoursEnd = entity.QuietHours.End
		model.QuietHoursTimezone = entity.QuietHours.Timezone
	}
	return model
}

func (m *sensorMapper) ToDomain(model *models.SensorModel) *sensor.Sensor {
	if model == nil {
		return nil
	}
	entity := &sensor.Sensor{
		SensorID:                 model.SensorID,
		UserID:                   model.UserID,
		Name:                     model.Name,
		Location:                 model.Location,
		Enabled:                  model.Enabled,
		MotionDebounceSeconds:    model.MotionDebounceSeconds,
		InactivityTimeoutSeconds: model.InactivityTimeoutSeconds,
		PlaybackTargetID:         model.PlaybackTargetID,
		PlaybackContextRef:       model.PlaybackContextRef,
		LastMotionAt:             model.LastMotionAt,
		Status:                   sensor.Status(model.Status),
		ThingHandle:              model.ThingHandle,
		CertificateHandle:        model.CertificateHandle,
		BatteryLevel:             model.BatteryLevel,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
	if model.QuietHoursStart != "" && model.QuietHoursEnd != "" {
		entity.QuietHours = &sensor.QuietHours{
			Start:    model.QuietHoursStart,
			End:      model.QuietHoursEnd,
			Timezone: model.QuietHoursTimezone,
		}
	}
	return entity
}
