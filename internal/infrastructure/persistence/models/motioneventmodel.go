package models

import (
	"time"

	"gorm.io/datatypes"
)

// MotionEventModel represents the append-only audit log of motion deliveries.
type MotionEventModel struct {
	EventID   string `gorm:"primarykey;size:36"`
	SensorID  string `gorm:"not null;size:128;index:idx_motion_events_sensor_time,priority:1"`
	UserID    string `gorm:"not null;size:64;index"`
	SessionID string `gorm:"size:191;index"`

	OccurredAt  time.Time      `gorm:"not null;index:idx_motion_events_sensor_time,priority:2"`
	EventType   string         `gorm:"size:32;not null"`
	ActionTaken string         `gorm:"size:64;not null"`
	Metadata    datatypes.JSON `gorm:"type:json"`

	ExpiresAt time.Time `gorm:"not null;index"`

	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (MotionEventModel) TableName() string {
	return "motion_events"
}
