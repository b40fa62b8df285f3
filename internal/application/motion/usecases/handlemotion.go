// Package usecases implements the motion orchestration flows: admitting
// motion deliveries, maintaining sessions, and driving playback.
package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/application/token"
	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/retry"
)

// HandleMotionCommand is one motion delivery after ingress validation.
type HandleMotionCommand struct {
	SensorID   string
	OccurredAt time.Time
	Metadata   motion.Metadata
}

// HandleMotionResult reports what the orchestrator did with the delivery.
type HandleMotionResult struct {
	EventType   motion.EventType
	ActionTaken string
	SessionID   string
}

// HandleMotionUseCase is the per-event orchestration: admission checks in
// order (disabled, quiet hours, debounce), then session open-or-extend, then
// playback. Every delivery lands in the audit log exactly once, whatever the
// outcome.
type HandleMotionUseCase struct {
	sensorRepo  sensor.Repository
	userRepo    user.Repository
	sessionRepo session.Repository
	eventRepo   motion.Repository
	tokens      *token.Service
	player      music.Service
	logger      logger.Interface

	now func() time.Time
}

func NewHandleMotionUseCase(
	sensorRepo sensor.Repository,
	userRepo user.Repository,
	sessionRepo session.Repository,
	eventRepo motion.Repository,
	tokens *token.Service,
	player music.Service,
	log logger.Interface,
) *HandleMotionUseCase {
	return &HandleMotionUseCase{
		sensorRepo:  sensorRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		tokens:      tokens,
		player:      player,
		logger:      log,
		now:         biztime.NowUTC,
	}
}

func (uc *HandleMotionUseCase) Execute(ctx context.Context, cmd HandleMotionCommand) (*HandleMotionResult, error) {
	sens, err := uc.sensorRepo.GetByID(ctx, cmd.SensorID)
	if err != nil {
		// Unknown sensor: nothing to audit against, reject outright.
		return nil, err
	}
	owner, err := uc.userRepo.GetByID(ctx, sens.UserID)
	if err != nil {
		uc.logger.Errorw("sensor references missing user", "sensor_id", sens.SensorID, "user_id", sens.UserID)
		return nil, err
	}

	if result := uc.checkAdmission(ctx, sens, cmd); result != nil {
		return result, nil
	}

	sess, opened, err := uc.resolveSession(ctx, sens, cmd.OccurredAt)
	if err != nil {
		return nil, err
	}

	action := motion.ActionSessionExtended
	if opened {
		action = motion.ActionSessionOpened
	}

	// Playback is best-effort: a provider outage must not lose the motion
	// bookkeeping that already happened.
	if opened || !sess.PlaybackStarted {
		uc.ensurePlayback(ctx, sens, owner, sess)
	}

	if !opened {
		if err := uc.sessionRepo.RecordMotion(ctx, sess.SessionID, cmd.OccurredAt); err != nil {
			if errors.IsConflictError(err) {
				// The reaper closed the session between our read and this
				// write. The next delivery opens a fresh session; this one
				// still counts as extending the interval it arrived in.
				uc.logger.Infow("session closed concurrently", "session_id", sess.SessionID)
			} else {
				return nil, err
			}
		}
	}

	// The sensor watermark advances on the event timestamp, so reordered
	// deliveries cannot pull it backwards.
	if err := uc.sensorRepo.AdvanceLastMotion(ctx, sens.SensorID, cmd.OccurredAt); err != nil {
		uc.logger.Warnw("failed to advance sensor motion watermark", "error", err, "sensor_id", sens.SensorID)
	}
	if cmd.Metadata.BatteryLevel != nil {
		if err := uc.sensorRepo.UpdateBatteryLevel(ctx, sens.SensorID, *cmd.Metadata.BatteryLevel); err != nil {
			uc.logger.Warnw("failed to record battery level", "error", err, "sensor_id", sens.SensorID)
		}
	}

	uc.audit(ctx, motion.NewEvent(sens.SensorID, sens.UserID, sess.SessionID, cmd.OccurredAt, motion.EventDetected, action, cmd.Metadata))

	uc.logger.Infow("motion handled",
		"sensor_id", sens.SensorID,
		"session_id", sess.SessionID,
		"action", action,
	)
	return &HandleMotionResult{
		EventType:   motion.EventDetected,
		ActionTaken: action,
		SessionID:   sess.SessionID,
	}, nil
}

// checkAdmission runs the suppression checks in their fixed order. A non-nil
// result means the event was suppressed and audited.
func (uc *HandleMotionUseCase) checkAdmission(ctx context.Context, sens *sensor.Sensor, cmd HandleMotionCommand) *HandleMotionResult {
	if !sens.Enabled || sens.Status == sensor.StatusDisabled {
		uc.audit(ctx, motion.NewEvent(sens.SensorID, sens.UserID, "", cmd.OccurredAt, motion.EventDisabledSuppressed, motion.ActionSuppressed, cmd.Metadata))
		return &HandleMotionResult{EventType: motion.EventDisabledSuppressed, ActionTaken: motion.ActionSuppressed}
	}

	quiet, err := sens.InQuietHours(cmd.OccurredAt)
	if err != nil {
		// A broken quiet-hours config fails open: motion is admitted rather
		// than silently dropped.
		uc.logger.Warnw("quiet hours evaluation failed, admitting motion", "error", err, "sensor_id", sens.SensorID)
	}
	if quiet {
		uc.audit(ctx, motion.NewEvent(sens.SensorID, sens.UserID, "", cmd.OccurredAt, motion.EventQuietHours, motion.ActionSuppressed, cmd.Metadata))
		return &HandleMotionResult{EventType: motion.EventQuietHours, ActionTaken: motion.ActionSuppressed}
	}

	if sens.DebounceBlocks(cmd.OccurredAt) {
		uc.audit(ctx, motion.NewEvent(sens.SensorID, sens.UserID, "", cmd.OccurredAt, motion.EventDebounced, motion.ActionSuppressed, cmd.Metadata))
		return &HandleMotionResult{EventType: motion.EventDebounced, ActionTaken: motion.ActionSuppressed}
	}
	return nil
}

// resolveSession returns the sensor's active session, opening one when none
// exists. Losing the create race means another handler opened it first; we
// adopt that session instead of failing.
func (uc *HandleMotionUseCase) resolveSession(ctx context.Context, sens *sensor.Sensor, occurredAt time.Time) (*session.Session, bool, error) {
	sess, err := uc.sessionRepo.GetActiveBySensorID(ctx, sens.SensorID)
	if err == nil {
		return sess, false, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, false, err
	}

	fresh, err := session.Open(sens.SensorID, sens.UserID, occurredAt)
	if err != nil {
		return nil, false, err
	}
	if err := uc.sessionRepo.CreateActive(ctx, fresh); err != nil {
		if errors.IsConflictError(err) {
			existing, getErr := uc.sessionRepo.GetActiveBySensorID(ctx, sens.SensorID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to adopt concurrently opened session: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return fresh, true, nil
}

// ensurePlayback starts music unless something is already playing. Query
// first, then start: reasserting playback over whatever the user chose to
// play manually would be worse than occasionally doing nothing.
func (uc *HandleMotionUseCase) ensurePlayback(ctx context.Context, sens *sensor.Sensor, owner *user.User, sess *session.Session) {
	accessToken, err := uc.tokens.AccessTokenForUser(ctx, owner.UserID)
	if err != nil {
		uc.logger.Warnw("no usable access token, skipping playback", "error", err, "user_id", owner.UserID)
		return
	}

	state, err := uc.player.GetPlaybackState(ctx, accessToken)
	if err != nil {
		uc.logger.Warnw("failed to query playback state", "error", err, "sensor_id", sens.SensorID)
		return
	}
	if state != nil && state.IsPlaying {
		// Respect whatever is playing; just record that this session has
		// music going.
		uc.markPlaybackStarted(ctx, sess)
		return
	}

	err = retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		return uc.player.StartPlayback(ctx, accessToken, sens.PlaybackTargetID, sens.PlaybackContextRef)
	})
	if err != nil {
		if errors.IsNotFoundError(err) {
			uc.logger.Infow("no playback device available", "sensor_id", sens.SensorID, "user_id", owner.UserID)
			return
		}
		if errors.IsAuthExpiredError(err) {
			uc.tokens.Invalidate(owner.UserID)
		}
		uc.logger.Warnw("failed to start playback", "error", err, "sensor_id", sens.SensorID)
		return
	}

	uc.markPlaybackStarted(ctx, sess)
	uc.logger.Infow("playback started", "sensor_id", sens.SensorID, "session_id", sess.SessionID)
}

func (uc *HandleMotionUseCase) markPlaybackStarted(ctx context.Context, sess *session.Session) {
	if sess.PlaybackStarted {
		return
	}
	sess.PlaybackStarted = true
	if err := uc.sessionRepo.MarkPlaybackStarted(ctx, sess.SessionID); err != nil {
		uc.logger.Warnw("failed to mark playback started", "error", err, "session_id", sess.SessionID)
	}
}

// audit appends the per-delivery row. Audit failures are logged, never
// propagated; losing an audit row must not turn into losing playback.
func (uc *HandleMotionUseCase) audit(ctx context.Context, e *motion.Event) {
	if err := uc.eventRepo.Append(ctx, e); err != nil {
		uc.logger.Errorw("failed to append motion audit row", "error", err, "sensor_id", e.SensorID, "event_type", e.EventType)
	}
}
