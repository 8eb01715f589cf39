package jobs

import (
	"context"
	"time"

	"music_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const musicCleanupTimeout = 30 * time.Second

// MusicFilePurger removes generated audio past its TTL.
type MusicFilePurger interface {
	PurgeExpiredFiles(ctx context.Context) (int64, error)
}

// MusicCleanupJob deletes generated files shortly after download. The files
// live on local disk so every replica runs it without a lock.
type MusicCleanupJob struct {
	files         MusicFilePurger
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

func NewMusicCleanupJob(files MusicFilePurger, logger *zap.Logger, cfg *config.Config) *MusicCleanupJob {
	cronLog := NewCronLogger(logger.Named("cron"))
	return &MusicCleanupJob{
		files:  files,
		logger: logger.Named("MusicCleanupJob"),
		cfg:    cfg,
		cronScheduler: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

func (j *MusicCleanupJob) SetupAndStart() error {
	jobSpec := j.cfg.MusicCleanupJobSchedule
	if jobSpec == "" {
		j.logger.Warn("Music cleanup job schedule not defined (MUSIC_CLEANUP_JOB_SCHEDULE). Generated files will accumulate.")
		return nil
	}
	if _, err := j.cronScheduler.AddFunc(jobSpec, j.runJob); err != nil {
		j.logger.Error("Failed to schedule music cleanup job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}
	j.logger.Info("Music cleanup job scheduled", zap.String("spec", jobSpec))
	j.cronScheduler.Start()
	return nil
}

func (j *MusicCleanupJob) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), musicCleanupTimeout)
	defer cancel()
	j.Run(ctx)
}

// Run performs one pass and returns the number of files removed.
func (j *MusicCleanupJob) Run(ctx context.Context) int64 {
	removed, err := j.files.PurgeExpiredFiles(ctx)
	if err != nil {
		j.logger.Error("Music file cleanup failed", zap.Error(err))
	}
	if removed > 0 {
		j.logger.Info("Music files removed", zap.Int64("files_deleted", removed))
	}
	return removed
}

func (j *MusicCleanupJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Music cleanup job scheduler stopped.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Music cleanup job scheduler stop timed out.")
	}
}
