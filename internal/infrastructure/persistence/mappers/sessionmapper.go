package mappers

import (
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
)

// SessionMapper handles the conversion between Session domain entities and
// persistence models.
type SessionMapper interface {
	ToModel(entity *session.Session) *models.SessionModel
	ToDomain(model *models.SessionModel) *session.Session
}

type sessionMapper struct{}

// NewSessionMapper creates a new SessionMapper.
func NewSessionMapper() SessionMapper {
	return &sessionMapper{}
}

func (m *sessionMapper) ToModel(entity *session.Session) *models.SessionModel {
	if entity == nil {
		return nil
	}
	model := &models.SessionModel{
		SessionID:       entity.SessionID,
		SensorID:        entity.SensorID,
		UserID:          entity.UserID,
		Status:          string(entity.Status),
		StartAt:         entity.StartAt,
		LastMotionAt:    entity.LastMotionAt,
		EndAt:           entity.EndAt,
		MotionCount:     entity.MotionCount,
		PlaybackStarted: entity.PlaybackStarted,
		DurationSeconds: entity.DurationSeconds,
		ExpiresAt:       entity.ExpiresAt,
	}
	if entity.Status == session.StatusActive {
		key := entity.SensorID
		model.ActiveKey = &key
	}
	return model
}

func (m *sessionMapper) ToDomain(model *models.SessionModel) *session.Session {
	if model == nil {
		return nil
	}
	return &session.Session{
		SessionID:       model.SessionID,
		SensorID:        model.SensorID,
		UserID:          model.UserID,
		Status:          session.Status(model.Status),
		StartAt:         model.StartAt,
		LastMotionAt:    model.LastMotionAt,
		EndAt:           model.EndAt,
		MotionCount:     model.MotionCount,
		PlaybackStarted: model.PlaybackStarted,
		DurationSeconds: model.DurationSeconds,
		ExpiresAt:       model.ExpiresAt,
	}
}
