package mappers

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
)

// MotionEventMapper handles the conversion between motion audit events and
// persistence models.
type MotionEventMapper interface {
	ToModel(entity *motion.Event) *models.MotionEventModel
	ToDomain(model *models.MotionEventModel) *motion.Event
}

type motionEventMapper struct{}

// NewMotionEventMapper creates a new MotionEventMapper.
func NewMotionEventMapper() MotionEventMapper {
	return &motionEventMapper{}
}

func (m *motionEventMapper) ToModel(entity *motion.Event) *models.MotionEventModel {
	if entity == nil {
		return nil
	}
	// Metadata is a closed struct, marshalling cannot fail.
	md, _ := json.Marshal(entity.Metadata)
	return &models.MotionEventModel{
		EventID:     entity.EventID,
		SensorID:    entity.SensorID,
		UserID:      entity.UserID,
		SessionID:   entity.SessionID,
		OccurredAt:  entity.OccurredAt,
		EventType:   string(entity.EventType),
		ActionTaken: entity.ActionTaken,
		Metadata:    datatypes.JSON(md),
		ExpiresAt:   entity.ExpiresAt,
	}
}

func (m *motionEventMapper) ToDomain(model *models.MotionEventModel) *motion.Event {
	if model == nil {
		return nil
	}
	entity := &motion.Event{
		EventID:     model.EventID,
		SensorID:    model.SensorID,
		UserID:      model.UserID,
		SessionID:   model.SessionID,
		OccurredAt:  model.OccurredAt,
		EventType:   motion.EventType(model.EventType),
		ActionTaken: model.ActionTaken,
		ExpiresAt:   model.ExpiresAt,
	}
	if len(model.Metadata) > 0 {
		_ = json.Unmarshal(model.Metadata, &entity.Metadata)
	}
	return entity
}
