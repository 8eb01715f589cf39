package loginlog

import (
	"context"
	"sync"
	"time"

	"music_backend/internal/common"
	"music_backend/internal/config"
	"music_backend/internal/platform/broker"
	platformElasticsearch "music_backend/internal/platform/elasticsearch"
	"music_backend/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sinkTimeout = 5 * time.Second

// Service records login attempts and serves login history.
type Service struct {
	repo   Repository
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

var _ shared.LoginRecorder = (*Service)(nil)

// NewService wires the optional sinks. A nil client or publisher leaves that sink out.
func NewService(
	repo Repository,
	es *platformElasticsearch.ESClientWrapper,
	publisher *broker.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	var sinks []Sink
	if es != nil {
		sinks = append(sinks, NewElasticsearchSink(es, cfg.LoginLogsIndex))
	}
	if publisher != nil {
		sinks = append(sinks, NewQueueSink(publisher, cfg.LoginEventsQueue))
	}
	return NewServiceWithSinks(repo, logger, sinks...)
}

func NewServiceWithSinks(repo Repository, logger *zap.Logger, sinks ...Sink) *Service {
	return &Service{
		repo:   repo,
		sinks:  sinks,
		logger: logger.Named("loginlog_service"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record stores the attempt and hands it to the sinks in the background.
// Failures are logged and never reach the caller.
func (s *Service) Record(ctx context.Context, attempt shared.LoginAttempt) {
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = s.now()
	}
	entry := FromAttempt(attempt)

	// The attempt must be kept even when the client has already gone away.
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to store login attempt",
			zap.Error(err),
			zap.String("method", entry.Method),
			zap.String("reason", entry.Reason),
		)
		return
	}

	for _, sink := range s.sinks {
		s.wg.Add(1)
		go func(sink Sink) {
			defer s.wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
			defer cancel()
			if err := sink.Publish(sinkCtx, entry); err != nil {
				s.logger.Warn("Login log sink failed",
					zap.String("sink", sink.Name()),
					zap.String("loginLogID", entry.ID.String()),
					zap.Error(err),
				)
			}
		}(sink)
	}
}

// Wait blocks until in-flight sink deliveries finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ListForUser returns one page of the user's login history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, pq common.PaginationQuery) ([]Response, *common.Pagination, error) {
	logs, total, err := s.repo.ListByUser(ctx, userID, pq.Offset(), pq.Limit())
	if err != nil {
		s.logger.Error("Failed to list login history", zap.Error(err), zap.String("userID", userID.String()))
		return nil, nil, err
	}
	out := make([]Response, 0, len(logs))
	for i := range logs {
		out = append(out, ToResponse(&logs[i]))
	}
	return out, common.NewPagination(total, pq.Page, pq.Limit()), nil
}

// PurgeOlderThan deletes rows older than retention. A non-positive retention keeps everything.
func (s *Service) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.repo.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Purged old login logs", zap.Int64("deleted", n))
	}
	return n, nil
}
