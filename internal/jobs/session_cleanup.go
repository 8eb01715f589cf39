package jobs

import (
	"context"
	"time"

	"music_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	sessionCleanupLock = "jobs:session-cleanup"
	// Revoked and expired refresh tokens are kept this long for auditing.
	refreshTokenGrace = 24 * time.Hour
	jobTimeout        = 5 * time.Minute
)

// SessionPurger deletes dead refresh-token sessions.
type SessionPurger interface {
	PurgeStale(ctx context.Context, grace time.Duration) (int64, error)
}

// LoginLogPurger deletes login history past its retention.
type LoginLogPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// SessionCleanupJob periodically removes stale sessions and old login logs.
type SessionCleanupJob struct {
	sessions      SessionPurger
	loginLogs     LoginLogPurger
	locker        Locker
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewSessionCleanupJob creates the job. locker may be nil.
func NewSessionCleanupJob(
	sessions SessionPurger,
	loginLogs LoginLogPurger,
	locker Locker,
	logger *zap.Logger,
	cfg *config.Config,
) *SessionCleanupJob {
	cronLog := NewCronLogger(logger.Named("cron"))
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &SessionCleanupJob{
		sessions:      sessions,
		loginLogs:     loginLogs,
		locker:        locker,
		logger:        logger.Named("SessionCleanupJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *SessionCleanupJob) SetupAndStart() error {
	jobSpec := j.cfg.SessionCleanupJobSchedule
	if jobSpec == "" {
		j.logger.Warn("Session cleanup job schedule not defined (SESSION_CLEANUP_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule session cleanup job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Session cleanup job scheduled", zap.String("spec", jobSpec), zap.Int("jobID", int(jobID)))
	j.cronScheduler.Start()
	return nil
}

func (j *SessionCleanupJob) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	j.Run(ctx)
}

// Run performs one cleanup pass. It returns false when another replica held the lock.
func (j *SessionCleanupJob) Run(ctx context.Context) bool {
	if j.locker != nil {
		release, ok := j.locker.TryLock(ctx, sessionCleanupLock, jobTimeout)
		if !ok {
			j.logger.Info("Session cleanup skipped, another instance holds the lock")
			return false
		}
		defer release()
	}

	j.logger.Info("Starting session cleanup job run...")

	tokens, err := j.sessions.PurgeStale(ctx, refreshTokenGrace)
	if err != nil {
		j.logger.Error("Refresh token cleanup failed", zap.Error(err))
	}

	logs, err := j.loginLogs.PurgeOlderThan(ctx, j.cfg.LoginLogRetention)
	if err != nil {
		j.logger.Error("Login log cleanup failed", zap.Error(err))
	}

	j.logger.Info("Session cleanup job run completed",
		zap.Int64("refresh_tokens_deleted", tokens),
		zap.Int64("login_logs_deleted", logs),
	)
	return true
}

// Stop gracefully stops the cron scheduler.
func (j *SessionCleanupJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping session cleanup job scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Session cleanup job scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Session cleanup job scheduler stop timed out.")
	}
}
