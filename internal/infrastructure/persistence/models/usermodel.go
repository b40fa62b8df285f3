package models

import "time"

// UserModel represents the database persistence model for users.
type UserModel struct {
	UserID string `gorm:"primarykey;size:64"`
	Email  string `gorm:"size:255;uniqueIndex"`

	MusicConnected bool   `gorm:"not null;default:false;index"`
	TokenRef       string `gorm:"size:128"`

	DefaultMotionDebounceSeconds    int    `gorm:"not null;default:120"`
	DefaultInactivityTimeoutSeconds int    `gorm:"not null;default:300"`
	QuietHoursStart                 string `gorm:"size:5"`
	QuietHoursEnd                   string `gorm:"size:5"`
	QuietHoursTimezone              string `gorm:"size:64"`
	NotifyOnLowBattery              bool   `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (UserModel) TableName() string {
	return "users"
}
