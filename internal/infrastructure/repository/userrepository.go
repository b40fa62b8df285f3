package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/infrastructure/persistence/mappers"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
)

type UserRepository struct {
	db     *gorm.DB
	mapper mappers.UserMapper
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{
		db:     db,
		mapper: mappers.NewUserMapper(),
	}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := r.mapper.ToModel(u)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("user already exists", u.UserID)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*user.User, error) {
	var model models.UserModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("user not found", userID)
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return r.mapper.ToDomain(&model), nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	u.UpdatedAt = biztime.NowUTC()
	model := r.mapper.ToModel(u)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("user not found", u.UserID)
	}
	return nil
}

func (r *UserRepository) ListMusicConnected(ctx context.Context) ([]*user.User, error) {
	var userModels []models.UserModel
	err := r.db.WithContext(ctx).Where("music_connected = ?", true).
		Order("user_id ASC").
		Find(&userModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list music-connected users: %w", err)
	}

	users := make([]*user.User, len(userModels))
	for i := range userModels {
		users[i] = r.mapper.ToDomain(&userModels[i])
	}
	return users, nil
}

func (r *UserRepository) SetMusicConnected(ctx context.Context, userID string, connected bool) error {
	result := r.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"music_connected": connected,
			"updated_at":      biztime.NowUTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set music connected: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("user not found", userID)
	}
	return nil
}
