// Package usecases implements device provisioning and deprovisioning: the
// ordered creation of a broker identity, with reverse-order compensation on
// partial failure.
package usecases

import (
	"context"
	"fmt"

	"github.com/resona-io/resona/internal/application/provisioning"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/shared/config"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

// ProvisionSensorCommand creates a device identity for a new sensor.
type ProvisionSensorCommand struct {
	SensorID string
	UserID   string
	Name     string
	Location string
}

// MQTTTopics echoes the topic strings the device will use.
type MQTTTopics struct {
	Motion   string `json:"motion"`
	Status   string `json:"status"`
	Config   string `json:"config"`
	Commands string `json:"commands"`
}

// CredentialBundle is returned to the caller exactly once. The private key is
// not stored anywhere server-side; losing it means reprovisioning.
type CredentialBundle struct {
	SensorID          string     `json:"sensorId"`
	ThingHandle       string     `json:"thingHandle"`
	CertificateHandle string     `json:"certificateHandle"`
	CertificatePEM    string     `json:"certificatePem"`
	PrivateKeyPEM     string     `json:"privateKeyPem"`
	CACertPEM         string     `json:"caCertPem"`
	BrokerEndpoint    string     `json:"brokerEndpoint"`
	PolicyName        string     `json:"policyName"`
	Region            string     `json:"region"`
	MQTTTopics        MQTTTopics `json:"mqttTopics"`
	Warning           string     `json:"warning"`
}

const oneTimeKeyWarning = "the private key is returned only once and is not stored; keep it safe"

// ProvisionSensorUseCase builds the device identity step by step: thing,
// certificate, policy, then the sensor record. A failure at any step tears
// down everything created so far, in reverse order, so a failed provision
// leaves no orphaned broker state.
type ProvisionSensorUseCase struct {
	sensorRepo   sensor.Repository
	userRepo     user.Repository
	controlPlane provisioning.ControlPlane
	issuer       provisioning.CertIssuer
	cfg          *config.ProvisioningConfig
	logger       logger.Interface
}

func NewProvisionSensorUseCase(
	sensorRepo sensor.Repository,
	userRepo user.Repository,
	controlPlane provisioning.ControlPlane,
	issuer provisioning.CertIssuer,
	cfg *config.ProvisioningConfig,
	log logger.Interface,
) *ProvisionSensorUseCase {
	return &ProvisionSensorUseCase{
		sensorRepo:   sensorRepo,
		userRepo:     userRepo,
		controlPlane: controlPlane,
		issuer:       issuer,
		cfg:          cfg,
		logger:       log,
	}
}

func (uc *ProvisionSensorUseCase) Execute(ctx context.Context, cmd ProvisionSensorCommand) (*CredentialBundle, error) {
	if err := sensor.ValidateID(cmd.SensorID); err != nil {
		return nil, errors.NewValidationError("invalid sensor ID", err.Error())
	}
	owner, err := uc.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.sensorRepo.GetByID(ctx, cmd.SensorID); err == nil {
		return nil, errors.NewConflictError("sensor already provisioned", cmd.SensorID)
	} else if !errors.IsNotFoundError(err) {
		return nil, err
	}

	thingName := ThingName(cmd.SensorID)
	policyName := PolicyName(cmd.SensorID)

	// Compensation stack: each completed step pushes its undo. On failure the
	// stack unwinds in reverse order; undo failures are logged and skipped so
	// one stuck teardown does not strand the rest.
	var undo []func(context.Context)
	fail := func(step string, err error) (*CredentialBundle, error) {
		uc.logger.Errorw("provisioning failed, compensating", "step", step, "error", err, "sensor_id", cmd.SensorID)
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i](ctx)
		}
		return nil, fmt.Errorf("provisioning failed at %s: %w", step, err)
	}

	if err := uc.controlPlane.CreateThing(ctx, thingName, cmd.SensorID); err != nil {
		return fail("create-thing", err)
	}
	undo = append(undo, func(ctx context.Context) {
		if err := uc.controlPlane.DeleteThing(ctx, thingName); err != nil {
			uc.logger.Warnw("compensation failed: delete thing", "error", err, "thing_name", thingName)
		}
	})

	creds, err := uc.issuer.IssueDeviceCert(cmd.SensorID)
	if err != nil {
		return fail("issue-certificate", err)
	}

	if err := uc.controlPlane.RegisterCertificate(ctx, thingName, creds.Fingerprint, creds.CertificatePEM, creds.NotAfter); err != nil {
		return fail("register-certificate", err)
	}
	undo = append(undo, func(ctx context.Context) {
		if err := uc.controlPlane.DeleteCertificate(ctx, creds.Fingerprint); err != nil {
			uc.logger.Warnw("compensation failed: delete certificate", "error", err, "fingerprint", creds.Fingerprint)
		}
	})

	if err := uc.controlPlane.EnsurePolicy(ctx, policyName, PolicyDocument(cmd.SensorID)); err != nil {
		return fail("ensure-policy", err)
	}
	if err := uc.controlPlane.AttachPolicy(ctx, policyName, creds.Fingerprint); err != nil {
		return fail("attach-policy", err)
	}
	undo = append(undo, func(ctx context.Context) {
		if err := uc.controlPlane.DetachPolicy(ctx, policyName, creds.Fingerprint); err != nil {
			uc.logger.Warnw("compensation failed: detach policy", "error", err, "policy_name", policyName)
		}
	})

	sens, err := sensor.NewSensor(
		cmd.SensorID,
		owner.UserID,
		cmd.Location,
		owner.Preferences.DefaultMotionDebounceSeconds,
		owner.Preferences.DefaultInactivityTimeoutSeconds,
	)
	if err != nil {
		return fail("build-sensor", err)
	}
	sens.Name = cmd.Name
	sens.ThingHandle = thingName
	sens.CertificateHandle = creds.Fingerprint
	if owner.Preferences.QuietHoursStart != "" && owner.Preferences.QuietHoursEnd != "" {
		qh, qhErr := sensor.NewQuietHours(owner.Preferences.QuietHoursStart, owner.Preferences.QuietHoursEnd, owner.Preferences.QuietHoursTimezone)
		if qhErr != nil {
			uc.logger.Warnw("owner has invalid default quiet hours, skipping", "error", qhErr, "user_id", owner.UserID)
		} else {
			sens.QuietHours = qh
		}
	}

	if err := uc.sensorRepo.Create(ctx, sens); err != nil {
		return fail("create-sensor-record", err)
	}

	uc.logger.Infow("sensor provisioned",
		"sensor_id", cmd.SensorID,
		"user_id", owner.UserID,
		"thing_name", thingName,
		"fingerprint", creds.Fingerprint,
	)
	return &CredentialBundle{
		SensorID:          cmd.SensorID,
		ThingHandle:       thingName,
		CertificateHandle: creds.Fingerprint,
		CertificatePEM:    creds.CertificatePEM,
		PrivateKeyPEM:     creds.PrivateKeyPEM,
		CACertPEM:         creds.CACertPEM,
		BrokerEndpoint:    uc.cfg.BrokerEndpoint,
		PolicyName:        policyName,
		Region:            uc.cfg.Region,
		MQTTTopics: MQTTTopics{
			Motion:   fmt.Sprintf("sensors/%s/motion", cmd.SensorID),
			Status:   fmt.Sprintf("sensors/%s/status", cmd.SensorID),
			Config:   fmt.Sprintf("sensors/%s/config", cmd.SensorID),
			Commands: fmt.Sprintf("sensors/%s/commands", cmd.SensorID),
		},
		Warning: oneTimeKeyWarning,
	}, nil
}

// ThingName derives the broker identity name from the sensor ID.
func ThingName(sensorID string) string {
	return "sensor-" + sensorID
}

// PolicyName derives the per-sensor policy name from the sensor ID.
func PolicyName(sensorID string) string {
	return "sensor-policy-" + sensorID
}

// PolicyDocument builds the per-sensor authorization document: a device may
// publish only its own uplink topics and subscribe only to its own downlink
// topics.
func PolicyDocument(sensorID string) []byte {
	doc := fmt.Sprintf(`{
  "version": 1,
  "publish": ["sensors/%s/motion", "sensors/%s/register", "sensors/%s/status"],
  "subscribe": ["sensors/%s/config", "sensors/%s/commands"]
}`, sensorID, sensorID, sensorID, sensorID, sensorID)
	return []byte(doc)
}
