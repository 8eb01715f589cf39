// File: internal/auth/blocklist.go
package auth

import (
	"context"
	"fmt"
	"time"

	"music_backend/internal/config"

	"github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blocklistKeyPrefix = "blocklist:"

// TokenBlocklistService defines the interface for a JWT blocklist.
type TokenBlocklistService interface {
	// AddToBlocklist adds a token's JTI (JWT ID) to the blocklist until expiresAt.
	AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error
	// IsBlocklisted checks if a token's JTI is in the blocklist.
	IsBlocklisted(ctx context.Context, jti string) (bool, error)
}

// NewBlocklistService picks the Redis blocklist when a client is available so every
// replica sees logouts, and the in-memory one otherwise.
func NewBlocklistService(cfg *config.Config, rdb *goredis.Client, logger *zap.Logger) TokenBlocklistService {
	if rdb != nil {
		return NewRedisBlocklistService(rdb)
	}
	logger.Warn("Using in-memory token blocklist; logouts are not shared between replicas")
	return NewInMemoryBlocklistService(InMemoryBlocklistConfig{
		DefaultExpiration: cfg.JWTAccessTokenExpiryMinutes,
		CleanupInterval:   10 * time.Minute,
	})
}

// InMemoryBlocklistService is an in-memory implementation of TokenBlocklistService using a cache.
type InMemoryBlocklistService struct {
	cache *cache.Cache
}

// InMemoryBlocklistConfig holds the configuration for the InMemoryBlocklistService.
type InMemoryBlocklistConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewInMemoryBlocklistService creates a new in-memory blocklist service.
func NewInMemoryBlocklistService(cfg InMemoryBlocklistConfig) *InMemoryBlocklistService {
	return &InMemoryBlocklistService{
		cache: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
	}
}

// AddToBlocklist adds a token JTI to the in-memory cache.
// The item will be automatically removed from the cache after it expires.
func (s *InMemoryBlocklistService) AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error {
	duration := time.Until(expiresAt)
	if duration <= 0 {
		return nil
	}
	s.cache.Set(jti, true, duration)
	return nil
}

// IsBlocklisted checks if a token JTI exists in the in-memory cache.
func (s *InMemoryBlocklistService) IsBlocklisted(ctx context.Context, jti string) (bool, error) {
	_, found := s.cache.Get(jti)
	return found, nil
}

// RedisBlocklistService stores blocklisted JTIs as expiring Redis keys.
type RedisBlocklistService struct {
	rdb *goredis.Client
}

func NewRedisBlocklistService(rdb *goredis.Client) *RedisBlocklistService {
	return &RedisBlocklistService{rdb: rdb}
}

func (s *RedisBlocklistService) AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, blocklistKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("blocklist set: %w", err)
	}
	return nil
}

func (s *RedisBlocklistService) IsBlocklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blocklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("blocklist lookup: %w", err)
	}
	return n > 0, nil
}
