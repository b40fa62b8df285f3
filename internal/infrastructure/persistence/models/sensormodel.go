package models

import "time"

// SensorModel represents the database persistence model for sensors.
type SensorModel struct {
	SensorID string `gorm:"primarykey;size:128"`
	UserID   string `gorm:"not null;size:64;index"`

	Name     string `gorm:"size:255"`
	Location string `gorm:"size:255"`

	Enabled                  bool `gorm:"not null;default:true"`
	MotionDebounceSeconds    int  `gorm:"not null;default:120"`
	InactivityTimeoutSeconds int  `gorm:"not null;default:300"`

	QuietHoursStart    string `gorm:"size:5"`
	QuietHoursEnd      string `gorm:"size:5"`
	QuietHoursTimezone string `gorm:"size:64"`

	PlaybackTargetID   string `gorm:"size:128"`
	PlaybackContextRef string `gorm:"size:255"`

	LastMotionAt      *time.Time
	Status            string `gorm:"size:20;not null;index"`
	ThingHandle       string `gorm:"size:255"`
	CertificateHandle string `gorm:"size:255"`
	BatteryLevel      *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (SensorModel) TableName() string {
	return "sensors"
}
