package session

import (
	"context"
	"time"
)

// Repository persists sessions. The storage invariant "at most one active
// session per sensor" is enforced here with conditional writes, not by
// callers.
type Repository interface {
	// CreateActive inserts a new active session. Returns Conflict when the
	// sensor already has an active session; the caller re-reads and adopts.
	CreateActive(ctx context.Context, s *Session) error

	// GetActiveBySensorID returns the sensor's active session or NotFound.
	GetActiveBySensorID(ctx context.Context, sensorID string) (*Session, error)

	GetByID(ctx context.Context, sessionID string) (*Session, error)

	// RecordMotion conditionally increments the motion count and advances
	// the last-motion watermark, only while the row is still active.
	// Returns Conflict when the session closed concurrently.
	RecordMotion(ctx context.Context, sessionID string, occurredAt time.Time) error

	// MarkPlaybackStarted flags that a start-playback command was issued for
	// this session.
	MarkPlaybackStarted(ctx context.Context, sessionID string) error

	// Close conditionally transitions active -> completed, setting endAt and
	// duration. Returns Conflict when another writer already closed the row;
	// reapers drop that silently.
	Close(ctx context.Context, sessionID string, endAt time.Time, durationSeconds int64) error

	// ListActive returns all active sessions, for the reaper. Backed by the
	// status index, not a table scan.
	ListActive(ctx context.Context) ([]*Session, error)

	// ListBySensor returns sessions for a sensor ordered by start time
	// descending, for dashboards and analytics.
	ListBySensor(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]*Session, error)

	// DeleteExpired removes rows past their TTL. Returns the number deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
