package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/infrastructure/persistence/mappers"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
)

type SessionRepository struct {
	db     *gorm.DB
	mapper mappers.SessionMapper
}

func NewSessionRepository(db *gorm.DB) session.Repository {
	return &SessionRepository{
		db:     db,
		mapper: mappers.NewSessionMapper(),
	}
}

// CreateActive inserts a new active session. The unique index on active_key
// is the storage-level witness for "at most one active session per sensor";
// losing the race surfaces as Conflict so the caller can adopt the winner.
func (r *SessionRepository) CreateActive(ctx context.Context, s *session.Session) error {
	if s.Status != session.StatusActive {
		return fmt.Errorf("CreateActive requires an active session, got %s", s.Status)
	}
	model := r.mapper.ToModel(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("active session already exists for sensor", s.SensorID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetActiveBySensorID(ctx context.Context, sensorID string) (*session.Session, error) {
	var model models.SessionModel
	err := r.db.WithContext(ctx).
		Where("sensor_id = ? AND status = ?", sensorID, string(session.StatusActive)).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("no active session for sensor", sensorID)
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return r.mapper.ToDomain(&model), nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*session.Session, error) {
	var model models.SessionModel
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("session not found", sessionID)
		}
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}
	return r.mapper.ToDomain(&model), nil
}

// RecordMotion increments motion_count and advances last_motion_at, but only
// while the row is still active. Concurrent handlers converge because the
// increment is done in SQL, not read-modify-write.
func (r *SessionRepository) RecordMotion(ctx context.Context, sessionID string, occurredAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.SessionModel{}).
		Where("session_id = ? AND status = ?", sessionID, string(session.StatusActive)).
		Updates(map[string]any{
			"motion_count":   gorm.Expr("motion_count + 1"),
			"last_motion_at": gorm.Expr("CASE WHEN last_motion_at < ? THEN ? ELSE last_motion_at END", occurredAt, occurredAt),
			"updated_at":     biztime.NowUTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record motion on session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("session is no longer active", sessionID)
	}
	return nil
}

func (r *SessionRepository) MarkPlaybackStarted(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).Model(&models.SessionModel{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"playback_started": true,
			"updated_at":       biztime.NowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark playback started: %w", err)
	}
	return nil
}

// Close conditionally transitions active -> completed. The same UPDATE clears
// active_key so the uniqueness witness frees up for the next session.
func (r *SessionRepository) Close(ctx context.Context, sessionID string, endAt time.Time, durationSeconds int64) error {
	result := r.db.WithContext(ctx).Model(&models.SessionModel{}).
		Where("session_id = ? AND status = ?", sessionID, string(session.StatusActive)).
		Updates(map[string]any{
			"status":           string(session.StatusCompleted),
			"active_key":       nil,
			"end_at":           endAt,
			"duration_seconds": durationSeconds,
			"updated_at":       biztime.NowUTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to close session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewConflictError("session already closed", sessionID)
	}
	return nil
}

func (r *SessionRepository) ListActive(ctx context.Context) ([]*session.Session, error) {
	var sessionModels []models.SessionModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(session.StatusActive)).
		Order("last_motion_at ASC").
		Find(&sessionModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	sessions := make([]*session.Session, len(sessionModels))
	for i := range sessionModels {
		sessions[i] = r.mapper.ToDomain(&sessionModels[i])
	}
	return sessions, nil
}

func (r *SessionRepository) ListBySensor(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]*session.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Where("sensor_id = ?", sensorID)
	if !from.IsZero() {
		query = query.Where("start_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("start_at < ?", to)
	}

	var sessionModels []models.SessionModel
	err := query.Order("start_at DESC").Limit(limit).Find(&sessionModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by sensor: %w", err)
	}

	sessions := make([]*session.Session, len(sessionModels))
	for i := range sessionModels {
		sessions[i] = r.mapper.ToDomain(&sessionModels[i])
	}
	return sessions, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ? AND status = ?", now, string(session.StatusCompleted)).
		Delete(&models.SessionModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
