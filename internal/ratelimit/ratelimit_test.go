package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoginLimiterDisabledWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, LoginRate: 1, LoginBurst: 1}}
	limiter, err := NewLoginLimiter(nil, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())
	assert.NoError(t, limiter.Allow(context.Background(), "admin", "127.0.0.1"))
}

func TestNewLoginLimiterRejectsBadRates(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, RedisAddr: "localhost:6379"}}
	_, err := NewLoginLimiter(nil, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestLoginKeys(t *testing.T) {
	assert.Equal(t, []string{"login:user:admin", "login:ip:10.0.0.1"}, loginKeys(" Admin ", "10.0.0.1"))
	assert.Equal(t, []string{"login:ip:10.0.0.1"}, loginKeys("", "10.0.0.1"))
	assert.Empty(t, loginKeys("", ""))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 50*time.Second, bucketTTL(0.2, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestScriptResultConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 0.0001)
}

func TestTokenBucketNilClient(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.Nil(t, NewTokenBucket(nil))
}

func TestTokenBucketDrainsAndRefuses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "login:user:admin", 0.01, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := bucket.Allow(ctx, "login:user:admin", 0.01, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	res, err = bucket.Allow(ctx, "login:user:other", 0.01, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLoginLimiterFailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:    true,
		RedisAddr:  mr.Addr(),
		LoginRate:  1,
		LoginBurst: 1,
	}}
	limiter, err := NewLoginLimiter(nil, cfg, zap.NewNop())
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	mr.Close()
	assert.NoError(t, limiter.Allow(context.Background(), "admin", "10.0.0.1"))
	assert.NoError(t, limiter.Allow(context.Background(), "admin", "10.0.0.1"))
}
