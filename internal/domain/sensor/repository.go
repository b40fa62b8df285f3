package sensor

import (
	"context"
	"time"
)

// Repository persists sensors. Implementations return the shared error kinds:
// NotFound when absent, Conflict on duplicate creation.
type Repository interface {
	Create(ctx context.Context, s *Sensor) error
	GetByID(ctx context.Context, sensorID string) (*Sensor, error)
	ListByUserID(ctx context.Context, userID string) ([]*Sensor, error)
	Update(ctx context.Context, s *Sensor) error
	Delete(ctx context.Context, sensorID string) error

	// AdvanceLastMotion moves the sensor's last-motion watermark forward to
	// occurredAt. The write is conditional: a stored value newer than
	// occurredAt is kept, giving max(stored, occurredAt) semantics under
	// reordered deliveries.
	AdvanceLastMotion(ctx context.Context, sensorID string, occurredAt time.Time) error

	// UpdateStatus transitions the sensor status without touching config.
	UpdateStatus(ctx context.Context, sensorID string, status Status) error

	// UpdateBatteryLevel records the latest battery report from the device.
	UpdateBatteryLevel(ctx context.Context, sensorID string, level int) error
}
