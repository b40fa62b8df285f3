package motion

import (
	"context"
	"time"
)

// Repository is the append-only audit store.
type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListBySensor(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]*Event, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
