package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that holds the shared window.
const DefaultRedisKey = "brandium:ratelimit:generation"

// acquireScript runs the expiry check, both ceiling checks and the increment
// as one Redis operation. Times are unix milliseconds from the caller's clock.
//
// KEYS[1] window hash
// ARGV    now, window, maxRequests, maxTokens, estimatedTokens
// returns {allowed, windowRemainingMs}
var acquireScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local maxRequests = tonumber(ARGV[3])
local maxTokens = tonumber(ARGV[4])
local estimated = tonumber(ARGV[5])

local vals = redis.call('HMGET', key, 'start', 'requests', 'tokens')
local start, requests, tokens = 0, 0, 0
if vals[1] then start = tonumber(vals[1]) end
if vals[2] then requests = tonumber(vals[2]) end
if vals[3] then tokens = tonumber(vals[3]) end

if start == 0 or now - start >= window then
  start = now
  requests = 0
  tokens = 0
end

local allowed = 0
if requests + 1 <= maxRequests and tokens + estimated <= maxTokens then
  requests = requests + 1
  tokens = tokens + estimated
  allowed = 1
end

redis.call('HSET', key, 'start', start, 'requests', requests, 'tokens', tokens)
redis.call('PEXPIRE', key, window)
return {allowed, start + window - now}
`)

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisKey overrides the hash key, so several limiters can share a server.
func WithRedisKey(key string) RedisOption {
	return func(l *RedisLimiter) {
		if key != "" {
			l.key = key
		}
	}
}

// WithRedisClock replaces time.Now, for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		l.now = now
	}
}

// RedisLimiter shares one window between every process pointed at the same
// Redis key. Hosts are expected to have synchronized clocks.
type RedisLimiter struct {
	rdb goredis.UniversalClient
	cfg Config
	key string
	now func() time.Time
}

// NewRedisLimiter creates a limiter on an existing client. The caller owns the client.
func NewRedisLimiter(rdb goredis.UniversalClient, cfg Config, opts ...RedisOption) (*RedisLimiter, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	l := &RedisLimiter{
		rdb: rdb,
		cfg: cfg.withDefaults(),
		key: DefaultRedisKey,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// DialRedis connects to addr and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Config returns the effective ceilings.
func (l *RedisLimiter) Config() Config {
	return l.cfg
}

// Acquire implements Limiter.
func (l *RedisLimiter) Acquire(ctx context.Context, estimatedTokens int) error {
	if estimatedTokens < 0 {
		estimatedTokens = 0
	}

	now := l.now()
	res, err := acquireScript.Run(ctx, l.rdb, []string{l.key},
		now.UnixMilli(),
		l.cfg.Window.Milliseconds(),
		l.cfg.MaxRequests,
		l.cfg.MaxTokens,
		estimatedTokens,
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}

	if res[0] == 1 {
		return nil
	}
	remaining := time.Duration(res[1]) * time.Millisecond
	return &ExceededError{RetryAfter: max(ceilSeconds(remaining), time.Second)}
}

// Status implements Limiter.
func (l *RedisLimiter) Status(ctx context.Context) (Status, error) {
	vals, err := l.rdb.HMGet(ctx, l.key, "start", "requests", "tokens").Result()
	if err != nil {
		return Status{}, fmt.Errorf("read rate window: %w", err)
	}

	var w Window
	if ms := parseInt(vals[0]); ms > 0 {
		w.Start = time.UnixMilli(ms)
	}
	w.RequestCount = int(parseInt(vals[1]))
	w.TokenCount = int(parseInt(vals[2]))

	return statusOf(w, l.cfg, l.now()), nil
}

// Reset implements Limiter.
func (l *RedisLimiter) Reset(ctx context.Context) error {
	if err := l.rdb.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("reset rate window: %w", err)
	}
	return nil
}

func parseInt(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// Lua may store large numbers in exponent form.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// Verify RedisLimiter implements Limiter.
var _ Limiter = (*RedisLimiter)(nil)
