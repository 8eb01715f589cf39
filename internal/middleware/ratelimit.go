package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"music_backend/internal/common"
	"music_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucketScript refills the bucket by whole intervals, takes one token if
// available and returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = goredis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
  local elapsed = math.max(0, now_ms - last_refill)
  local intervals = math.floor(elapsed / interval_ms)
  if intervals > 0 then
    tokens = math.min(capacity, tokens + (intervals * refill_tokens))
    last_refill = last_refill + (intervals * interval_ms)
  end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// rateLimitClock is replaced in tests to step across refill intervals.
var rateLimitClock = time.Now

// RateLimit returns a Redis token-bucket limiter. Without a Redis client or when
// disabled it is a pass-through. Redis errors let the request through.
func RateLimit(cfg *config.Config, rdb *goredis.Client, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.RateLimitEnabled || rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}

	capacity := max(cfg.RateLimitCapacity, 1)
	refillTokens := max(cfg.RateLimitRefillTokens, 1)
	interval := cfg.RateLimitRefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	// Long enough for an idle bucket to refill completely before the key disappears.
	ttl := time.Duration(math.Ceil(float64(capacity)/float64(refillTokens))+1) * interval
	if ttl < time.Minute {
		ttl = time.Minute
	}
	log := logger.Named("ratelimit")

	return func(c *gin.Context) {
		key := buildRateKey(cfg, c)

		vals, err := tokenBucketScript.Run(c.Request.Context(), rdb, []string{key},
			rateLimitClock().UnixMilli(),
			capacity,
			refillTokens,
			interval.Milliseconds(),
			int64(ttl/time.Second),
		).Int64Slice()
		if err != nil || len(vals) != 3 {
			log.Warn("Rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]
		c.Header("X-RateLimit-Limit", strconv.Itoa(capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			secs := int(math.Ceil(float64(retryMs) / 1000.0))
			c.Header("Retry-After", strconv.Itoa(secs))
			log.Info("Rate limit exceeded", zap.String("key", key), zap.Int64("retry_after_ms", retryMs))
			common.RespondWithError(c, common.ErrTooManyRequests.WithDetails(map[string]int{"retry_after_seconds": secs}))
			return
		}
		c.Next()
	}
}

func buildRateKey(cfg *config.Config, c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	route := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
	uid := "anon"
	if id := common.GetUserIDFromContext(c); id != uuid.Nil {
		uid = id.String()
	}

	parts := []string{cfg.RateLimitPrefix}
	switch strings.ToLower(cfg.RateLimitKeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "route":
		parts = append(parts, "route", route)
	case "user":
		parts = append(parts, "user", uid)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
