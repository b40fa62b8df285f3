package mappers

import (
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
)

// UserMapper handles the conversion between User domain entities and
// persistence models.
type UserMapper interface {
	ToModel(entity *user.User) *models.UserModel
	ToDomain(model *models.UserModel) *user.User
}

type userMapper struct{}

// NewUserMapper creates a new UserMapper.
func NewUserMapper() UserMapper {
	return &userMapper{}
}

func (m *userMapper) ToModel(entity *user.User) *models.UserModel {
	if entity == nil {
		return nil
	}
	return &models.UserModel{
		UserID:                          entity.UserID,
		Email:                           entity.Email,
		MusicConnected:                  entity.MusicConnected,
		TokenRef:                        entity.TokenRef,
		DefaultMotionDebounceSeconds:    entity.Preferences.DefaultMotionDebounceSeconds,
		DefaultInactivityTimeoutSeconds: entity.Preferences.DefaultInactivityTimeoutSeconds,
		QuietHoursStart:                 entity.Preferences.QuietHoursStart,
		QuietHoursEnd:                   entity.Preferences.QuietHoursEnd,
		QuietHoursTimezone:              entity.Preferences.QuietHoursTimezone,
		NotifyOnLowBattery:              entity.Preferences.NotifyOnLowBattery,
		CreatedAt:                       entity.CreatedAt,
		UpdatedAt:                       entity.UpdatedAt,
	}
}

func (m *userMapper) ToDomain(model *models.UserModel) *user.User {
	if model == nil {
		return nil
	}
	return &user.User{
		UserID:         model.UserID,
		Email:          model.Email,
		MusicConnected: model.MusicConnected,
		TokenRef:       model.TokenRef,
		Preferences: user.Preferences{
			DefaultMotionDebounceSeconds:    model.DefaultMotionDebounceSeconds,
			DefaultInactivityTimeoutSeconds: model.DefaultInactivityTimeoutSeconds,
			QuietHoursStart:                 model.QuietHoursStart,
			QuietHoursEnd:                   model.QuietHoursEnd,
			QuietHoursTimezone:              model.QuietHoursTimezone,
			NotifyOnLowBattery:              model.NotifyOnLowBattery,
		},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
