package usecases

import (
	"context"
	"time"

	"github.com/resona-io/resona/internal/application/provisioning"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

// DeprovisionSensorCommand retires a sensor and its broker identity.
type DeprovisionSensorCommand struct {
	SensorID string
	// UserID scopes the operation when set; admin callers leave it empty.
	UserID string
}

// DeprovisionSensorUseCase tears down the device identity in reverse
// provisioning order. Every step tolerates already-gone state, so a retry
// after a partial failure finishes the job instead of erroring out.
type DeprovisionSensorUseCase struct {
	sensorRepo   sensor.Repository
	sessionRepo  session.Repository
	controlPlane provisioning.ControlPlane
	logger       logger.Interface

	now func() time.Time
}

func NewDeprovisionSensorUseCase(
	sensorRepo sensor.Repository,
	sessionRepo session.Repository,
	controlPlane provisioning.ControlPlane,
	log logger.Interface,
) *DeprovisionSensorUseCase {
	return &DeprovisionSensorUseCase{
		sensorRepo:   sensorRepo,
		sessionRepo:  sessionRepo,
		controlPlane: controlPlane,
		logger:       log,
		now:          biztime.NowUTC,
	}
}

func (uc *DeprovisionSensorUseCase) Execute(ctx context.Context, cmd DeprovisionSensorCommand) error {
	sens, err := uc.sensorRepo.GetByID(ctx, cmd.SensorID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			// The sensor record is the authoritative signal of a provision, so
			// its absence is NotFound. Still sweep broker leftovers by derived
			// names, in case a partial deprovision stranded them.
			uc.cleanupBroker(ctx, ThingName(cmd.SensorID), "", PolicyName(cmd.SensorID))
		}
		return err
	}
	if cmd.UserID != "" && sens.UserID != cmd.UserID {
		return errors.NewNotFoundError("sensor not found", cmd.SensorID)
	}

	uc.closeActiveSession(ctx, sens.SensorID)

	thingName := sens.ThingHandle
	if thingName == "" {
		thingName = ThingName(sens.SensorID)
	}
	uc.cleanupBroker(ctx, thingName, sens.CertificateHandle, PolicyName(sens.SensorID))

	if err := uc.sensorRepo.Delete(ctx, sens.SensorID); err != nil && !errors.IsNotFoundError(err) {
		return err
	}

	uc.logger.Infow("sensor deprovisioned", "sensor_id", sens.SensorID)
	return nil
}

// cleanupBroker retires the broker-side identity: certificate deactivated
// first so the device cannot reconnect, then detach, then deletes.
func (uc *DeprovisionSensorUseCase) cleanupBroker(ctx context.Context, thingName, fingerprint, policyName string) {
	if fingerprint != "" {
		if err := uc.controlPlane.DeactivateCertificate(ctx, fingerprint); err != nil {
			uc.logger.Warnw("failed to deactivate certificate", "error", err, "fingerprint", fingerprint)
		}
		if err := uc.controlPlane.DetachPolicy(ctx, policyName, fingerprint); err != nil {
			uc.logger.Warnw("failed to detach policy", "error", err, "fingerprint", fingerprint)
		}
		if err := uc.controlPlane.DeleteCertificate(ctx, fingerprint); err != nil {
			uc.logger.Warnw("failed to delete certificate", "error", err, "fingerprint", fingerprint)
		}
	}
	if err := uc.controlPlane.DeleteThing(ctx, thingName); err != nil {
		uc.logger.Warnw("failed to delete thing", "error", err, "thing_name", thingName)
	}
}

// closeActiveSession ends any session still open on the sensor so the row
// does not sit active forever after the sensor is gone.
func (uc *DeprovisionSensorUseCase) closeActiveSession(ctx context.Context, sensorID string) {
	sess, err := uc.sessionRepo.GetActiveBySensorID(ctx, sensorID)
	if err != nil {
		if !errors.IsNotFoundError(err) {
			uc.logger.Warnw("failed to look up active session", "error", err, "sensor_id", sensorID)
		}
		return
	}

	endAt := uc.now()
	if endAt.Before(sess.LastMotionAt) {
		endAt = sess.LastMotionAt
	}
	durationSeconds := int64(endAt.Sub(sess.StartAt).Seconds())
	if err := uc.sessionRepo.Close(ctx, sess.SessionID, endAt, durationSeconds); err != nil && !errors.IsConflictError(err) {
		uc.logger.Warnw("failed to close session during deprovision", "error", err, "session_id", sess.SessionID)
	}
}
