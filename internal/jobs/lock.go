package jobs

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker grants exclusive runs across replicas.
type Locker interface {
	// TryLock returns ok=false without waiting when another holder has the lock.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool)
}

type redsyncLocker struct {
	rs     *redsync.Redsync
	logger *zap.Logger
}

// NewLocker returns nil when there is no redis client; jobs then run unguarded.
func NewLocker(rdb *goredislib.Client, logger *zap.Logger) Locker {
	if rdb == nil {
		return nil
	}
	return &redsyncLocker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		logger: logger.Named("job_lock"),
	}
}

func (l *redsyncLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool) {
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		l.logger.Debug("Lock not acquired", zap.String("lock", name), zap.Error(err))
		return nil, false
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(releaseCtx); !ok || err != nil {
			l.logger.Warn("Failed to release lock", zap.String("lock", name), zap.Error(err))
		}
	}, true
}
