package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"music_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSessionPurger struct {
	mock.Mock
}

func (m *MockSessionPurger) PurgeStale(ctx context.Context, grace time.Duration) (int64, error) {
	args := m.Called(ctx, grace)
	return args.Get(0).(int64), args.Error(1)
}

type MockLoginLogPurger struct {
	mock.Mock
}

func (m *MockLoginLogPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool) {
	if l.held || name != sessionCleanupLock {
		return nil, false
	}
	return func() { l.released++ }, true
}

func testConfig() *config.Config {
	return &config.Config{
		SessionCleanupJobSchedule: "@hourly",
		LoginLogRetention:         90 * 24 * time.Hour,
	}
}

func TestSessionCleanupJob_Run(t *testing.T) {
	sessions := new(MockSessionPurger)
	logs := new(MockLoginLogPurger)
	sessions.On("PurgeStale", mock.Anything, refreshTokenGrace).Return(int64(3), nil).Once()
	logs.On("PurgeOlderThan", mock.Anything, 90*24*time.Hour).Return(int64(7), nil).Once()
	locker := &fakeLocker{}

	job := NewSessionCleanupJob(sessions, logs, locker, zap.NewNop(), testConfig())

	assert.True(t, job.Run(context.Background()))
	assert.Equal(t, 1, locker.released)
	sessions.AssertExpectations(t)
	logs.AssertExpectations(t)
}

func TestSessionCleanupJob_SkipsWhenLocked(t *testing.T) {
	sessions := new(MockSessionPurger)
	logs := new(MockLoginLogPurger)
	job := NewSessionCleanupJob(sessions, logs, &fakeLocker{held: true}, zap.NewNop(), testConfig())

	assert.False(t, job.Run(context.Background()))
	sessions.AssertNotCalled(t, "PurgeStale", mock.Anything, mock.Anything)
	logs.AssertNotCalled(t, "PurgeOlderThan", mock.Anything, mock.Anything)
}

func TestSessionCleanupJob_ContinuesAfterFailure(t *testing.T) {
	sessions := new(MockSessionPurger)
	logs := new(MockLoginLogPurger)
	sessions.On("PurgeStale", mock.Anything, refreshTokenGrace).Return(int64(0), errors.New("db down"))
	logs.On("PurgeOlderThan", mock.Anything, mock.Anything).Return(int64(1), nil)

	job := NewSessionCleanupJob(sessions, logs, nil, zap.NewNop(), testConfig())

	assert.True(t, job.Run(context.Background()))
	logs.AssertExpectations(t)
}

func TestSessionCleanupJob_Schedule(t *testing.T) {
	cfg := testConfig()
	cfg.SessionCleanupJobSchedule = "not a cron spec"
	job := NewSessionCleanupJob(new(MockSessionPurger), new(MockLoginLogPurger), nil, zap.NewNop(), cfg)
	assert.Error(t, job.SetupAndStart())

	cfg.SessionCleanupJobSchedule = ""
	require.NoError(t, job.SetupAndStart())

	cfg.SessionCleanupJobSchedule = "@every 1h"
	require.NoError(t, job.SetupAndStart())
	job.Stop()
}

func TestNewLocker_NilWithoutRedis(t *testing.T) {
	assert.Nil(t, NewLocker(nil, zap.NewNop()))
}
