package models

import (
	"time"

	"gorm.io/datatypes"
)

// ThingModel is a broker-side device identity. The thing name doubles as the
// handle stored on the sensor record.
type ThingModel struct {
	ThingName string `gorm:"primarykey;size:160"`
	SensorID  string `gorm:"not null;size:128;uniqueIndex"`

	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (ThingModel) TableName() string {
	return "broker_things"
}

// DeviceCertificateModel is a client certificate minted for a thing. Only the
// certificate (never the private key) is persisted.
type DeviceCertificateModel struct {
	CertificateID string `gorm:"primarykey;size:64"`
	ThingName     string `gorm:"size:160;index"`

	Status         string    `gorm:"size:16;not null"` // active | inactive
	CertificatePEM string    `gorm:"type:text;not null"`
	PolicyName     string    `gorm:"size:160"`
	NotAfter       time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (DeviceCertificateModel) TableName() string {
	return "broker_certificates"
}

// DevicePolicyModel is a topic-scoped authorization policy document consumed
// by the broker's auth hook.
type DevicePolicyModel struct {
	PolicyName string         `gorm:"primarykey;size:160"`
	Document   datatypes.JSON `gorm:"type:json;not null"`

	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (DevicePolicyModel) TableName() string {
	return "broker_policies"
}
