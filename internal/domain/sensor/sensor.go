// Package sensor holds the Sensor aggregate: a physical motion detector bound
// to a broker identity and to an owning user.
package sensor

import (
	"fmt"
	"regexp"
	"time"

	"github.com/resona-io/resona/internal/shared/biztime"
)

// Status is the provisioning/runtime state of a sensor.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusActive     Status = "active"
	StatusDisabled   Status = "disabled"
	StatusError      Status = "error"
)

// IDPattern constrains sensor IDs to characters that are safe as broker
// identity names and topic segments: no whitespace, nothing needing URL
// encoding.
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,128}$`)

// ValidateID checks a sensor ID against the naming constraints.
func ValidateID(sensorID string) error {
	if !IDPattern.MatchString(sensorID) {
		return fmt.Errorf("invalid sensor ID %q: must match %s", sensorID, IDPattern.String())
	}
	return nil
}

// Sensor is a registered motion detector and its playback configuration.
type Sensor struct {
	SensorID string
	UserID   string

	Name     string
	Location string

	Enabled                  bool
	MotionDebounceSeconds    int
	InactivityTimeoutSeconds int
	QuietHours               *QuietHours
	PlaybackTargetID         string
	PlaybackContextRef       string

	LastMotionAt      *time.Time
	Status            Status
	ThingHandle       string
	CertificateHandle string
	BatteryLevel      *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSensor builds a sensor record in the registered state. The thing and
// certificate handles are attached by the provisioner once the broker-side
// identity exists.
func NewSensor(sensorID, userID, location string, debounceSeconds, timeoutSeconds int) (*Sensor, error) {
	if err := ValidateID(sensorID); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if debounceSeconds < 0 {
		return nil, fmt.Errorf("motion debounce must not be negative, got %d", debounceSeconds)
	}
	if timeoutSeconds <= 0 {
		return nil, fmt.Errorf("inactivity timeout must be positive, got %d", timeoutSeconds)
	}

	now := biztime.NowUTC()
	return &Sensor{
		SensorID:                 sensorID,
		UserID:                   userID,
		Location:                 location,
		Enabled:                  true,
		MotionDebounceSeconds:    debounceSeconds,
		InactivityTimeoutSeconds: timeoutSeconds,
		Status:                   StatusRegistered,
		CreatedAt:                now,
		UpdatedAt:                now,
	}, nil
}

// InQuietHours reports whether the instant falls inside the configured quiet
// hours. A sensor without quiet hours is never quiet.
func (s *Sensor) InQuietHours(at time.Time) (bool, error) {
	if s.QuietHours == nil {
		return false, nil
	}
	return s.QuietHours.Contains(at)
}

// DebounceBlocks reports whether a motion at occurredAt is inside the
// debounce window relative to the stored last motion time. The comparison is
// on the event's own timestamp, not the broker receive time, to avoid drift.
func (s *Sensor) DebounceBlocks(occurredAt time.Time) bool {
	if s.LastMotionAt == nil || s.MotionDebounceSeconds <= 0 {
		return false
	}
	delta := occurredAt.Sub(*s.LastMotionAt)
	return delta < time.Duration(s.MotionDebounceSeconds)*time.Second
}

// InactivityTimeout returns the configured timeout as a duration.
func (s *Sensor) InactivityTimeout() time.Duration {
	return time.Duration(s.InactivityTimeoutSeconds) * time.Second
}

// TopicPrefix returns the MQTT topic prefix owned by this sensor.
func (s *Sensor) TopicPrefix() string {
	return fmt.Sprintf("sensors/%s", s.SensorID)
}
