// Package motion holds the append-only audit log of motion deliveries. Every
// event handed to the orchestrator produces exactly one row here, whatever
// the admission outcome.
package motion

import (
	"time"

	"github.com/google/uuid"

	"github.com/resona-io/resona/internal/domain/session"
)

// EventType tags the admission outcome of a motion delivery.
type EventType string

const (
	EventDetected           EventType = "detected"
	EventDebounced          EventType = "debounced"
	EventQuietHours         EventType = "quiet-hours-suppressed"
	EventDisabledSuppressed EventType = "disabled-suppressed"
	EventRegistration       EventType = "registration"
	EventStatusReport       EventType = "status-report"
)

// Action tags describing what the orchestrator did with the event.
const (
	ActionSessionOpened         = "session-opened"
	ActionSessionExtended       = "session-extended"
	ActionSessionClosed         = "session-closed"
	ActionSuppressed            = "suppressed"
	ActionRegistrationAnnounced = "registration-announced"
	ActionStatusRecorded        = "status-recorded"
)

// Metadata carries optional device telemetry attached to a motion event.
type Metadata struct {
	BatteryLevel    *int   `json:"batteryLevel,omitempty"`
	SignalStrength  *int   `json:"signalStrength,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
	Uptime          *int64 `json:"uptime,omitempty"`
	FreeHeap        *int64 `json:"freeHeap,omitempty"`
}

// Event is one audit row.
type Event struct {
	EventID     string
	SensorID    string
	UserID      string
	SessionID   string
	OccurredAt  time.Time
	EventType   EventType
	ActionTaken string
	Metadata    Metadata

	ExpiresAt time.Time
}

// NewEvent builds an audit row. SessionID may be empty for suppressed events
// that never touched a session.
func NewEvent(sensorID, userID, sessionID string, occurredAt time.Time, eventType EventType, action string, md Metadata) *Event {
	return &Event{
		EventID:     uuid.NewString(),
		SensorID:    sensorID,
		UserID:      userID,
		SessionID:   sessionID,
		OccurredAt:  occurredAt,
		EventType:   eventType,
		ActionTaken: action,
		Metadata:    md,
		ExpiresAt:   occurredAt.Add(session.DefaultRetention),
	}
}
