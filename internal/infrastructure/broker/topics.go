package broker

import "fmt"

// Topic layout. Uplink topics are published by devices and consumed by the
// ingress router; downlink topics flow the other way.
const (
	// Uplink filters for the ingress subscription.
	MotionTopicFilter   = "sensors/+/motion"
	RegisterTopicFilter = "sensors/+/register"
	StatusTopicFilter   = "sensors/+/status"
)

func ConfigTopic(sensorID string) string {
	return fmt.Sprintf("sensors/%s/config", sensorID)
}

func CommandTopic(sensorID string) string {
	return fmt.Sprintf("sensors/%s/commands", sensorID)
}
