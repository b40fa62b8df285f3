// Package session holds the Session aggregate: a time-bounded interval of
// sensor activity, opened by admitted motion and closed by inactivity.
package session

import (
	"fmt"
	"time"

	"github.com/resona-io/resona/internal/shared/id"
)

// Status is the session lifecycle state. Completed is terminal; a completed
// session is never reopened.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// DefaultRetention is how long closed sessions and their audit rows are kept
// before TTL deletion.
const DefaultRetention = 30 * 24 * time.Hour

// Session records one interval of activity on a sensor. The "active session"
// fact lives in storage, not in process memory, so reordered and concurrent
// deliveries converge on the same row.
type Session struct {
	SessionID string
	SensorID  string
	UserID    string

	Status          Status
	StartAt         time.Time
	LastMotionAt    time.Time
	EndAt           *time.Time
	MotionCount     int
	PlaybackStarted bool
	DurationSeconds int64

	// ExpiresAt drives TTL deletion of the row.
	ExpiresAt time.Time
}

// Open creates a new active session for the first admitted motion.
func Open(sensorID, userID string, startAt time.Time) (*Session, error) {
	if sensorID == "" || userID == "" {
		return nil, fmt.Errorf("sensor ID and user ID are required")
	}
	sessionID, err := id.NewSessionID(sensorID, startAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	return &Session{
		SessionID:    sessionID,
		SensorID:     sensorID,
		UserID:       userID,
		Status:       StatusActive,
		StartAt:      startAt,
		LastMotionAt: startAt,
		MotionCount:  1,
		ExpiresAt:    startAt.Add(DefaultRetention),
	}, nil
}

// RecordMotion extends an active session with another admitted motion.
func (s *Session) RecordMotion(occurredAt time.Time) error {
	if s.Status != StatusActive {
		return fmt.Errorf("cannot record motion on %s session %s", s.Status, s.SessionID)
	}
	s.MotionCount++
	if occurredAt.After(s.LastMotionAt) {
		s.LastMotionAt = occurredAt
	}
	return nil
}

// Close completes the session. EndAt never precedes LastMotionAt.
func (s *Session) Close(endAt time.Time) error {
	if s.Status != StatusActive {
		return fmt.Errorf("session %s already %s", s.SessionID, s.Status)
	}
	if endAt.Before(s.LastMotionAt) {
		endAt = s.LastMotionAt
	}
	s.Status = StatusCompleted
	s.EndAt = &endAt
	s.DurationSeconds = int64(endAt.Sub(s.StartAt).Seconds())
	return nil
}

// IdleSince returns how long the session has seen no motion as of now.
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastMotionAt)
}
