// Package broker implements the device registry and downlink publishing for
// the MQTT broker: things, certificates, and policies live in broker_*
// tables read by the broker's auth hook.
package broker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/application/provisioning"
	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
)

const (
	certStatusActive   = "active"
	certStatusInactive = "inactive"
)

// ControlPlane manages the broker-side device registry.
type ControlPlane struct {
	db *gorm.DB
}

func NewControlPlane(db *gorm.DB) *ControlPlane {
	return &ControlPlane{db: db}
}

var _ provisioning.ControlPlane = (*ControlPlane)(nil)

func (p *ControlPlane) CreateThing(ctx context.Context, thingName, sensorID string) error {
	model := models.ThingModel{
		ThingName: thingName,
		SensorID:  sensorID,
		CreatedAt: biztime.NowUTC(),
	}
	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("thing already exists", thingName)
		}
		return fmt.Errorf("failed to create thing: %w", err)
	}
	return nil
}

// DeleteThing removes the thing record. Deleting a thing that is already gone
// is a no-op, so deprovisioning can be retried from any point.
func (p *ControlPlane) DeleteThing(ctx context.Context, thingName string) error {
	if err := p.db.WithContext(ctx).Where("thing_name = ?", thingName).Delete(&models.ThingModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete thing: %w", err)
	}
	return nil
}

func (p *ControlPlane) RegisterCertificate(ctx context.Context, thingName, fingerprint, certificatePEM string, notAfter time.Time) error {
	now := biztime.NowUTC()
	model := models.DeviceCertificateModel{
		CertificateID:  fingerprint,
		ThingName:      thingName,
		Status:         certStatusActive,
		CertificatePEM: certificatePEM,
		NotAfter:       notAfter,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("certificate already registered", fingerprint)
		}
		return fmt.Errorf("failed to register certificate: %w", err)
	}
	return nil
}

// DeactivateCertificate flips the certificate to inactive so the broker's
// auth hook rejects it on the next connect. Unknown fingerprints are a no-op.
func (p *ControlPlane) DeactivateCertificate(ctx context.Context, fingerprint string) error {
	err := p.db.WithContext(ctx).Model(&models.DeviceCertificateModel{}).
		Where("certificate_id = ?", fingerprint).
		Updates(map[string]any{
			"status":     certStatusInactive,
			"updated_at": biztime.NowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate certificate: %w", err)
	}
	return nil
}

func (p *ControlPlane) DeleteCertificate(ctx context.Context, fingerprint string) error {
	if err := p.db.WithContext(ctx).Where("certificate_id = ?", fingerprint).Delete(&models.DeviceCertificateModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	return nil
}

func (p *ControlPlane) EnsurePolicy(ctx context.Context, policyName string, document []byte) error {
	model := models.DevicePolicyModel{
		PolicyName: policyName,
		Document:   datatypes.JSON(document),
		CreatedAt:  biztime.NowUTC(),
	}
	// Upsert: policy documents are derived from the sensor ID, so re-running
	// provisioning just rewrites the same document.
	err := p.db.WithContext(ctx).Save(&model).Error
	if err != nil {
		return fmt.Errorf("failed to ensure policy: %w", err)
	}
	return nil
}

func (p *ControlPlane) AttachPolicy(ctx context.Context, policyName, fingerprint string) error {
	result := p.db.WithContext(ctx).Model(&models.DeviceCertificateModel{}).
		Where("certificate_id = ?", fingerprint).
		Updates(map[string]any{
			"policy_name": policyName,
			"updated_at":  biztime.NowUTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to attach policy: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("certificate not found", fingerprint)
	}
	return nil
}

func (p *ControlPlane) DetachPolicy(ctx context.Context, policyName, fingerprint string) error {
	err := p.db.WithContext(ctx).Model(&models.DeviceCertificateModel{}).
		Where("certificate_id = ? AND policy_name = ?", fingerprint, policyName).
		Updates(map[string]any{
			"policy_name": "",
			"updated_at":  biztime.NowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to detach policy: %w", err)
	}
	return nil
}
