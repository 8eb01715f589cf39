package captcha

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Minute, zap.NewNop()), mr
}

func TestRedisStore_GetWithClearIsSingleUse(t *testing.T) {
	store, mr := newRedisStore(t)

	require.NoError(t, store.Set("abc", "4821"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"abc"))

	assert.Equal(t, "4821", store.Get("abc", false))
	assert.True(t, mr.Exists(keyPrefix+"abc"), "peeking keeps the answer")

	assert.Equal(t, "4821", store.Get("abc", true))
	assert.False(t, mr.Exists(keyPrefix+"abc"))
	assert.Equal(t, "", store.Get("abc", true))
}

func TestRedisStore_Verify(t *testing.T) {
	store, mr := newRedisStore(t)

	require.NoError(t, store.Set("abc", "4821"))
	assert.False(t, store.Verify("abc", "0000", true))
	assert.False(t, store.Verify("abc", "4821", true), "a wrong answer consumes the captcha")

	require.NoError(t, store.Set("def", "AbCd"))
	assert.True(t, store.Verify("def", " abcd ", true))

	require.NoError(t, store.Set("ghi", "1111"))
	mr.FastForward(2 * time.Minute)
	assert.False(t, store.Verify("ghi", "1111", true))
}

func TestService_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := NewService(rdb, zap.NewNop())

	id, _, err := svc.Generate()
	require.NoError(t, err)
	answer, err := mr.Get(keyPrefix + id)
	require.NoError(t, err)
	require.Len(t, answer, digitCount)

	assert.True(t, svc.Verify(id, answer))
	assert.False(t, svc.Verify(id, answer))
}
