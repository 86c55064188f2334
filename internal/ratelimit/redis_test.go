package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T, cfg Config, clock *fakeClock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := NewRedisLimiter(rdb, cfg, WithRedisClock(clock.Now), WithRedisKey("test:window"))
	require.NoError(t, err)
	return l, mr
}

func TestRedisLimiter_RequestCeiling(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l, _ := setupRedisLimiter(t, Config{MaxRequests: 2, MaxTokens: 100}, clock)

	require.NoError(t, l.Acquire(ctx, 10))
	require.NoError(t, l.Acquire(ctx, 10))

	err := l.Acquire(ctx, 10)
	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, 60, exceeded.RetryAfterSeconds())

	clock.Advance(DefaultWindow)
	require.NoError(t, l.Acquire(ctx, 10))

	st, err := l.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.RequestsRemaining)
	assert.Equal(t, 90, st.TokensRemaining)
}

func TestRedisLimiter_TokenCeiling(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l, mr := setupRedisLimiter(t, Config{MaxRequests: 10, MaxTokens: 100}, clock)

	require.NoError(t, l.Acquire(ctx, 80))
	assert.ErrorIs(t, l.Acquire(ctx, 30), ErrRateLimitExceeded)

	assert.Equal(t, "1", mr.HGet("test:window", "requests"))
	assert.Equal(t, "80", mr.HGet("test:window", "tokens"))
}

func TestRedisLimiter_StatusAndReset(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l, mr := setupRedisLimiter(t, Config{MaxRequests: 5, MaxTokens: 500}, clock)

	st, err := l.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, st.RequestsRemaining)
	assert.Equal(t, 500, st.TokensRemaining)

	require.NoError(t, l.Acquire(ctx, 120))
	clock.Advance(20 * time.Second)

	st, err = l.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.RequestsRemaining)
	assert.Equal(t, 380, st.TokensRemaining)
	assert.Equal(t, 40, st.WindowResetInSeconds())

	require.NoError(t, l.Reset(ctx))
	assert.False(t, mr.Exists("test:window"))
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	first, mr := setupRedisLimiter(t, Config{MaxRequests: 1, MaxTokens: 100}, clock)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	second, err := NewRedisLimiter(rdb, Config{MaxRequests: 1, MaxTokens: 100},
		WithRedisClock(clock.Now), WithRedisKey("test:window"))
	require.NoError(t, err)

	require.NoError(t, first.Acquire(ctx, 1))
	assert.ErrorIs(t, second.Acquire(ctx, 1), ErrRateLimitExceeded)
}

func TestRedisLimiter_ConcurrentAcquireNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l, _ := setupRedisLimiter(t, Config{MaxRequests: 5, MaxTokens: 1000}, clock)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire(ctx, 10) == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), granted.Load())
}

func TestNewRedisLimiter_RequiresClient(t *testing.T) {
	_, err := NewRedisLimiter(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestDialRedis(t *testing.T) {
	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb, err := DialRedis(context.Background(), mr.Addr())
		require.NoError(t, err)
		assert.NoError(t, rdb.Close())
	})

	t.Run("rejects empty address", func(t *testing.T) {
		_, err := DialRedis(context.Background(), "")
		assert.Error(t, err)
	})
}
