package usecases

import (
	"context"
	"time"

	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/logger"
)

// RetentionSweepUseCase deletes completed sessions and audit rows past their
// retention window. Active sessions are never touched, whatever their age.
type RetentionSweepUseCase struct {
	sessionRepo session.Repository
	eventRepo   motion.Repository
	logger      logger.Interface

	now func() time.Time
}

func NewRetentionSweepUseCase(
	sessionRepo session.Repository,
	eventRepo motion.Repository,
	log logger.Interface,
) *RetentionSweepUseCase {
	return &RetentionSweepUseCase{
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		logger:      log,
		now:         biztime.NowUTC,
	}
}

// Execute returns the total number of rows deleted across both tables.
func (uc *RetentionSweepUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.now()

	sessions, err := uc.sessionRepo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	events, err := uc.eventRepo.DeleteExpired(ctx, now)
	if err != nil {
		return int(sessions), err
	}

	if sessions > 0 || events > 0 {
		uc.logger.Infow("retention sweep deleted expired rows",
			"sessions", sessions,
			"motion_events", events,
		)
	}
	return int(sessions + events), nil
}
