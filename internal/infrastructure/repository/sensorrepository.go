package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/infrastructure/persistence/mappers"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
)

type SensorRepository struct {
	db     *gorm.DB
	mapper mappers.SensorMapper
}

func NewSensorRepository(db *gorm.DB) sensor.Repository {
	return &SensorRepository{
		db:     db,
		mapper: mappers.NewSensorMapper(),
	}
}

func (r *SensorRepository) Create(ctx context.Context, s *sensor.Sensor) error {
	model := r.mapper.ToModel(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("sensor already exists", s.SensorID)
		}
		return fmt.Errorf("failed to create sensor: %w", err)
	}
	return nil
}

func (r *SensorRepository) GetByID(ctx context.Context, sensorID string) (*sensor.Sensor, error) {
	var model models.SensorModel
	err := r.db.WithContext(ctx).Where("sensor_id = ?", sensorID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("sensor not found", sensorID)
		}
		return nil, fmt.Errorf("failed to get sensor by ID: %w", err)
	}
	return r.mapper.ToDomain(&model), nil
}

func (r *SensorRepository) ListByUserID(ctx context.Context, userID string) ([]*sensor.Sensor, error) {
	var sensorModels []models.SensorModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&sensorModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors by user ID: %w", err)
	}

	sensors := make([]*sensor.Sensor, len(sensorModels))
	for i := range sensorModels {
		sensors[i] = r.mapper.ToDomain(&sensorModels[i])
	}
	return sensors, nil
}

func (r *SensorRepository) Update(ctx context.Context, s *sensor.Sensor) error {
	s.UpdatedAt = biztime.NowUTC()
	model := r.mapper.ToModel(s)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update sensor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("sensor not found", s.SensorID)
	}
	return nil
}

func (r *SensorRepository) Delete(ctx context.Context, sensorID string) error {
	result := r.db.WithContext(ctx).Where("sensor_id = ?", sensorID).Delete(&models.SensorModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete sensor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("sensor not found", sensorID)
	}
	return nil
}

// AdvanceLastMotion moves last_motion_at forward only. Reordered deliveries
// leave the newer watermark in place, which is what the debounce check needs.
func (r *SensorRepository) AdvanceLastMotion(ctx context.Context, sensorID string, occurredAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.SensorModel{}).
		Where("sensor_id = ? AND (last_motion_at IS NULL OR last_motion_at < ?)", sensorID, occurredAt).
		Updates(map[string]any{
			"last_motion_at": occurredAt,
			"status":         string(sensor.StatusActive),
			"updated_at":     biztime.NowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to advance sensor last motion: %w", err)
	}
	return nil
}

func (r *SensorRepository) UpdateStatus(ctx context.Context, sensorID string, status sensor.Status) error {
	result := r.db.WithContext(ctx).Model(&models.SensorModel{}).
		Where("sensor_id = ?", sensorID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": biztime.NowUTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update sensor status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("sensor not found", sensorID)
	}
	return nil
}

func (r *SensorRepository) UpdateBatteryLevel(ctx context.Context, sensorID string, level int) error {
	err := r.db.WithContext(ctx).Model(&models.SensorModel{}).
		Where("sensor_id = ?", sensorID).
		Updates(map[string]any{
			"battery_level": level,
			"updated_at":    biztime.NowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update sensor battery level: %w", err)
	}
	return nil
}
