package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"music_backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLimitedRouter(t *testing.T, rdb *goredis.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		RateLimitEnabled:        true,
		RateLimitCapacity:       2,
		RateLimitRefillTokens:   1,
		RateLimitRefillInterval: 10 * time.Second,
		RateLimitKeyStrategy:    "ip_route",
		RateLimitPrefix:         "rl",
	}
	r := gin.New()
	r.POST("/users/login", RateLimit(cfg, rdb, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func postLogin(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/users/login", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_TokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rateLimitClock = func() time.Time { return now }
	t.Cleanup(func() { rateLimitClock = time.Now })

	r := newLimitedRouter(t, rdb)

	w := postLogin(r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	w = postLogin(r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = postLogin(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
	assert.True(t, mr.Exists("rl:ip:198.51.100.4:route:POST /users/login"))

	// Part of an interval refills nothing.
	now = now.Add(4 * time.Second)
	w = postLogin(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "6", w.Header().Get("Retry-After"))

	now = now.Add(6 * time.Second)
	w = postLogin(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_FailsOpenWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := newLimitedRouter(t, rdb)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, postLogin(r).Code)
	}
}
