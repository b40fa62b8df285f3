package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resona-io/resona/internal/application/device"
	"github.com/resona-io/resona/internal/infrastructure/mqtt"
	"github.com/resona-io/resona/internal/shared/logger"
)

// DevicePublisher pushes configuration and commands down to sensors.
type DevicePublisher struct {
	client *mqtt.Client
	logger logger.Interface
}

func NewDevicePublisher(client *mqtt.Client, log logger.Interface) *DevicePublisher {
	return &DevicePublisher{client: client, logger: log}
}

var _ device.Publisher = (*DevicePublisher)(nil)

// PublishConfig publishes retained at QoS 1 so an offline sensor receives the
// latest config when it reconnects.
func (p *DevicePublisher) PublishConfig(ctx context.Context, sensorID string, cfg device.ConfigUpdate) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config update: %w", err)
	}
	if err := p.client.Publish(ctx, ConfigTopic(sensorID), 1, true, payload); err != nil {
		return err
	}
	p.logger.Infow("pushed config to sensor", "sensor_id", sensorID)
	return nil
}

// PublishCommand publishes at QoS 1, not retained. Commands are one-shot; a
// sensor that was offline should not replay them.
func (p *DevicePublisher) PublishCommand(ctx context.Context, sensorID string, cmd device.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	if err := p.client.Publish(ctx, CommandTopic(sensorID), 1, false, payload); err != nil {
		return err
	}
	p.logger.Infow("sent command to sensor", "sensor_id", sensorID, "command", cmd.Name)
	return nil
}
