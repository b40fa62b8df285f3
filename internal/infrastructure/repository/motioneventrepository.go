package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/infrastructure/persistence/mappers"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
)

type MotionEventRepository struct {
	db     *gorm.DB
	mapper mappers.MotionEventMapper
}

func NewMotionEventRepository(db *gorm.DB) motion.Repository {
	return &MotionEventRepository{
		db:     db,
		mapper: mappers.NewMotionEventMapper(),
	}
}

func (r *MotionEventRepository) Append(ctx context.Context, e *motion.Event) error {
	model := r.mapper.ToModel(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append motion event: %w", err)
	}
	return nil
}

func (r *MotionEventRepository) ListBySensor(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]*motion.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.WithContext(ctx).Where("sensor_id = ?", sensorID)
	if !from.IsZero() {
		query = query.Where("occurred_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("occurred_at < ?", to)
	}

	var eventModels []models.MotionEventModel
	err := query.Order("occurred_at DESC").Limit(limit).Find(&eventModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list motion events: %w", err)
	}

	events := make([]*motion.Event, len(eventModels))
	for i := range eventModels {
		events[i] = r.mapper.ToDomain(&eventModels[i])
	}
	return events, nil
}

func (r *MotionEventRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.MotionEventModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired motion events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
