// Package usecases implements the background session flows: closing idle
// sessions and sweeping expired history.
package usecases

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/application/token"
	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
	"github.com/resona-io/resona/internal/shared/retry"
)

// CloseIdleSessionsUseCase is the reaper: it closes sessions whose sensor has
// been quiet past its inactivity timeout and pauses the music that session
// started. One stuck session never blocks the rest of the sweep.
type CloseIdleSessionsUseCase struct {
	sessionRepo session.Repository
	sensorRepo  sensor.Repository
	eventRepo   motion.Repository
	tokens      *token.Service
	player      music.Service
	logger      logger.Interface

	fanOutLimit int
	now         func() time.Time
}

func NewCloseIdleSessionsUseCase(
	sessionRepo session.Repository,
	sensorRepo sensor.Repository,
	eventRepo motion.Repository,
	tokens *token.Service,
	player music.Service,
	fanOutLimit int,
	log logger.Interface,
) *CloseIdleSessionsUseCase {
	if fanOutLimit <= 0 {
		fanOutLimit = 10
	}
	return &CloseIdleSessionsUseCase{
		sessionRepo: sessionRepo,
		sensorRepo:  sensorRepo,
		eventRepo:   eventRepo,
		tokens:      tokens,
		player:      player,
		logger:      log,
		fanOutLimit: fanOutLimit,
		now:         biztime.NowUTC,
	}
}

// Execute sweeps all active sessions and returns how many were closed.
func (uc *CloseIdleSessionsUseCase) Execute(ctx context.Context) (int, error) {
	active, err := uc.sessionRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	var closed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.fanOutLimit)
	for _, sess := range active {
		g.Go(func() error {
			if uc.reapOne(ctx, sess) {
				closed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(closed.Load()), err
	}
	return int(closed.Load()), nil
}

// reapOne closes a single session when it is past its sensor's inactivity
// timeout. Reports true when this sweep closed it.
func (uc *CloseIdleSessionsUseCase) reapOne(ctx context.Context, sess *session.Session) bool {
	sens, err := uc.sensorRepo.GetByID(ctx, sess.SensorID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			// Sensor was deprovisioned under an open session. Close it now;
			// nothing will ever extend it again.
			uc.logger.Warnw("active session references deleted sensor, closing", "session_id", sess.SessionID, "sensor_id", sess.SensorID)
			return uc.closeSession(ctx, sess)
		}
		uc.logger.Errorw("failed to load sensor for reaping", "error", err, "session_id", sess.SessionID)
		return false
	}

	if uc.now().Sub(sess.LastMotionAt) < sens.InactivityTimeout() {
		return false
	}
	return uc.closeSession(ctx, sess)
}

// closeSession pauses playback, then flips the row to completed. The order
// matters for the user experience but not for correctness: pause failures are
// absorbed and the close still happens, because a session that can no longer
// be extended must not stay active.
func (uc *CloseIdleSessionsUseCase) closeSession(ctx context.Context, sess *session.Session) bool {
	if sess.PlaybackStarted {
		uc.pausePlayback(ctx, sess)
	}

	endAt := uc.now()
	if endAt.Before(sess.LastMotionAt) {
		endAt = sess.LastMotionAt
	}
	durationSeconds := int64(endAt.Sub(sess.StartAt).Seconds())

	if err := uc.sessionRepo.Close(ctx, sess.SessionID, endAt, durationSeconds); err != nil {
		if errors.IsConflictError(err) {
			// Lost the close race to a concurrent sweep. The session is
			// closed either way.
			return false
		}
		uc.logger.Errorw("failed to close session", "error", err, "session_id", sess.SessionID)
		return false
	}

	e := motion.NewEvent(sess.SensorID, sess.UserID, sess.SessionID, endAt, motion.EventDetected, motion.ActionSessionClosed, motion.Metadata{})
	if err := uc.eventRepo.Append(ctx, e); err != nil {
		uc.logger.Errorw("failed to audit session close", "error", err, "session_id", sess.SessionID)
	}

	uc.logger.Infow("session closed",
		"session_id", sess.SessionID,
		"sensor_id", sess.SensorID,
		"motion_count", sess.MotionCount,
		"duration_seconds", durationSeconds,
	)
	return true
}

// pausePlayback stops the music this session started. "Nothing is playing"
// and "no device" are success; the desired end state already holds.
func (uc *CloseIdleSessionsUseCase) pausePlayback(ctx context.Context, sess *session.Session) {
	accessToken, err := uc.tokens.AccessTokenForUser(ctx, sess.UserID)
	if err != nil {
		uc.logger.Warnw("no usable access token, skipping pause", "error", err, "user_id", sess.UserID)
		return
	}

	err = retry.Do(ctx, retry.DefaultPolicy, func(ctx context.Context) error {
		return uc.player.PausePlayback(ctx, accessToken)
	})
	if err != nil {
		if errors.IsAuthExpiredError(err) {
			uc.tokens.Invalidate(sess.UserID)
		}
		uc.logger.Warnw("failed to pause playback", "error", err, "session_id", sess.SessionID)
	}
}
