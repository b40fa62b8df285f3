package models

import "time"

// SessionModel represents the database persistence model for playback
// sessions.
//
// ActiveKey is the uniqueness witness for "at most one active session per
// sensor": it equals the sensor ID while the session is active and is NULLed
// by the conditional close. MySQL permits any number of NULLs under a unique
// index, so completed sessions never collide.
type SessionModel struct {
	SessionID string `gorm:"primarykey;size:191"`
	SensorID  string `gorm:"not null;size:128;index:idx_sessions_sensor_start,priority:1"`
	UserID    string `gorm:"not null;size:64;index"`

	Status    string  `gorm:"size:20;not null;index:idx_sessions_status_motion,priority:1"`
	ActiveKey *string `gorm:"size:128;uniqueIndex"`

	StartAt         time.Time `gorm:"not null;index:idx_sessions_sensor_start,priority:2,sort:desc"`
	LastMotionAt    time.Time `gorm:"not null;index:idx_sessions_status_motion,priority:2"`
	EndAt           *time.Time
	MotionCount     int   `gorm:"not null;default:1"`
	PlaybackStarted bool  `gorm:"not null;default:false"`
	DurationSeconds int64 `gorm:"not null;default:0"`

	ExpiresAt time.Time `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (SessionModel) TableName() string {
	return "sessions"
}
