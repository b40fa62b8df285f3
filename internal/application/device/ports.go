// Package device defines the downlink port: pushing configuration and
// commands to sensors over the broker.
package device

import "context"

// ConfigUpdate is the device-facing slice of sensor configuration. Pushed
// retained, so a sensor that reconnects picks up the latest config without
// waiting for the next change.
type ConfigUpdate struct {
	DebounceSeconds      int    `json:"debounceSeconds"`
	InactivityTimeoutSec int    `json:"inactivityTimeoutSec"`
	Disabled             bool   `json:"disabled"`
	QuietHoursStart      string `json:"quietHoursStart,omitempty"`
	QuietHoursEnd        string `json:"quietHoursEnd,omitempty"`
	ReportIntervalSec    int    `json:"reportIntervalSec,omitempty"`
}

// Command is a one-shot instruction to a sensor.
type Command struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// Publisher sends downlink messages to a sensor's config and command topics.
type Publisher interface {
	PublishConfig(ctx context.Context, sensorID string, cfg ConfigUpdate) error
	PublishCommand(ctx context.Context, sensorID string, cmd Command) error
}
