package captcha

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix    = "captcha:"
	storeTimeout = 2 * time.Second
)

// RedisStore is a base64Captcha.Store shared by every replica.
type RedisStore struct {
	rdb        *goredis.Client
	expiration time.Duration
	logger     *zap.Logger
}

var _ base64Captcha.Store = (*RedisStore)(nil)

func NewRedisStore(rdb *goredis.Client, expiration time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, expiration: expiration, logger: logger}
}

func (s *RedisStore) Set(id string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return s.rdb.Set(ctx, keyPrefix+id, value, s.expiration).Err()
}

// Get returns the stored answer, deleting it in the same transaction when clear is set.
func (s *RedisStore) Get(id string, clear bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	key := keyPrefix + id
	if !clear {
		val, err := s.rdb.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			s.logger.Warn("Captcha lookup failed", zap.Error(err))
		}
		return val
	}

	var get *goredis.StringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		s.logger.Warn("Captcha lookup failed", zap.Error(err))
		return ""
	}
	return get.Val()
}

func (s *RedisStore) Verify(id, answer string, clear bool) bool {
	stored := s.Get(id, clear)
	return stored != "" && strings.EqualFold(stored, strings.TrimSpace(answer))
}
