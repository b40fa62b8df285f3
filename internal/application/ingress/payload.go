// Package ingress decodes and validates broker uplink messages and hands
// them to the right handler. It trusts the topic, never the payload, for the
// sensor identity.
package ingress

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
)

// Uplink message kinds, derived from the topic suffix.
const (
	KindMotion   = "motion"
	KindRegister = "register"
	KindStatus   = "status"
)

var validate = validator.New()

// motionPayload is the device's motion report. The sensorId field must agree
// with the topic; a mismatch is a validation failure, not a soft warning.
type motionPayload struct {
	Event     string          `json:"event" validate:"required,eq=motion_detected"`
	SensorID  string          `json:"sensorId" validate:"required"`
	Timestamp json.RawMessage `json:"timestamp" validate:"required"`
	Metadata  metadataPayload `json:"metadata"`
}

type registerPayload struct {
	Event           string          `json:"event"`
	SensorID        string          `json:"sensorId"`
	FirmwareVersion string          `json:"firmwareVersion"`
	Timestamp       json.RawMessage `json:"timestamp"`
}

type statusPayload struct {
	Status    string          `json:"status" validate:"required,oneof=online offline low_battery error"`
	Timestamp json.RawMessage `json:"timestamp"`
	Metadata  metadataPayload `json:"metadata"`

	BatteryLevel *int   `json:"batteryLevel"`
	Uptime       *int64 `json:"uptime"`
}

type metadataPayload struct {
	BatteryLevel    *int   `json:"batteryLevel" validate:"omitempty,gte=0,lte=100"`
	SignalStrength  *int   `json:"signalStrength"`
	FirmwareVersion string `json:"firmwareVersion"`
	Uptime          *int64 `json:"uptime"`
	FreeHeap        *int64 `json:"freeHeap"`
}

func (m metadataPayload) toDomain() motion.Metadata {
	return motion.Metadata{
		BatteryLevel:    m.BatteryLevel,
		SignalStrength:  m.SignalStrength,
		FirmwareVersion: m.FirmwareVersion,
		Uptime:          m.Uptime,
		FreeHeap:        m.FreeHeap,
	}
}

// parseTopic splits "sensors/{sensorId}/{kind}" into its parts.
func parseTopic(topic string) (sensorID, kind string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "sensors" || parts[1] == "" {
		return "", "", errors.NewValidationError("unrecognized topic shape", topic)
	}
	switch parts[2] {
	case KindMotion, KindRegister, KindStatus:
		return parts[1], parts[2], nil
	default:
		return "", "", errors.NewValidationError("unrecognized topic suffix", topic)
	}
}

// parseTimestamp accepts epoch seconds or ISO-8601. A missing or malformed
// timestamp falls back to the server clock rather than dropping the event.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return biztime.NowUTC()
	}

	var epoch int64
	if err := json.Unmarshal(raw, &epoch); err == nil && epoch > 0 {
		return biztime.FromUnix(epoch)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if t, err := time.Parse(time.RFC3339, text); err == nil {
			return biztime.ToUTC(t)
		}
	}
	return biztime.NowUTC()
}

// decodeAndValidate unmarshals into dst and runs struct validation.
func decodeAndValidate(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.NewValidationError("malformed payload", err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return errors.NewValidationError("payload failed validation", err.Error())
	}
	return nil
}

// checkSensorIDMatch enforces topic/payload agreement when the payload names
// a sensor at all.
func checkSensorIDMatch(topicSensorID, payloadSensorID string) error {
	if payloadSensorID != "" && payloadSensorID != topicSensorID {
		return errors.NewValidationError(
			"payload sensorId disagrees with topic",
			fmt.Sprintf("topic=%s payload=%s", topicSensorID, payloadSensorID),
		)
	}
	return nil
}
