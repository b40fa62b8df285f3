package models

import "time"

// SecretModel stores age-encrypted secret material, keyed by the opaque
// reference handed out to owners. Plaintext never reaches this table.
type SecretModel struct {
	Ref        string `gorm:"primarykey;size:128"`
	Ciphertext []byte `gorm:"type:blob;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (SecretModel) TableName() string {
	return "secrets"
}
