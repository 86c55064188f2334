// Package ratelimit guards outbound generation calls with a fixed-window
// ceiling on both call count and token volume.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimitExceeded is matched by every *ExceededError.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// DefaultWindow is the accounting period of a limiter.
const DefaultWindow = 60 * time.Second

// Default ceilings per window.
const (
	DefaultMaxRequests = 20
	DefaultMaxTokens   = 40000
)

// ExceededError is returned when a call would pass one of the ceilings.
type ExceededError struct {
	// RetryAfter is the time until the window resets, in whole seconds.
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrRateLimitExceeded, int(e.RetryAfter/time.Second))
}

// Is reports ErrRateLimitExceeded as the sentinel.
func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfterSeconds is a helper for callers that surface the delay as an int.
func (e *ExceededError) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// Limiter is implemented by every window backend.
// Implementations must make the check-and-increment of Acquire atomic.
type Limiter interface {
	// Acquire reserves one request and estimatedTokens tokens in the current
	// window, or returns an *ExceededError without reserving anything.
	Acquire(ctx context.Context, estimatedTokens int) error

	// Status reports the remaining headroom without mutating the window.
	Status(ctx context.Context) (Status, error)

	// Reset zeroes the window. Maintenance and tests only.
	Reset(ctx context.Context) error
}

// Config holds the ceilings of a limiter.
type Config struct {
	MaxRequests int           `yaml:"max_requests"`
	MaxTokens   int           `yaml:"max_tokens"`
	Window      time.Duration `yaml:"window"`
}

// DefaultConfig returns the per-minute defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests: DefaultMaxRequests,
		MaxTokens:   DefaultMaxTokens,
		Window:      DefaultWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Status is a read-only snapshot of a window.
type Status struct {
	RequestsRemaining int
	TokensRemaining   int
	WindowResetIn     time.Duration
}

// WindowResetInSeconds returns WindowResetIn rounded up to whole seconds.
func (s Status) WindowResetInSeconds() int {
	return int(ceilSeconds(s.WindowResetIn) / time.Second)
}

// Window is the mutable accounting state of one window.
type Window struct {
	Start        time.Time
	RequestCount int
	TokenCount   int
}

// Option configures a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// MemoryLimiter is a process-local Limiter guarded by a mutex.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	window Window
}

// NewMemoryLimiter creates a limiter whose window starts at the first call.
func NewMemoryLimiter(cfg Config, opts ...Option) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the effective ceilings.
func (l *MemoryLimiter) Config() Config {
	return l.cfg
}

// Acquire implements Limiter. The context is unused; the check never blocks.
func (l *MemoryLimiter) Acquire(_ context.Context, estimatedTokens int) error {
	if estimatedTokens < 0 {
		estimatedTokens = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.expired(now) {
		l.window = Window{Start: now}
	}

	if l.window.RequestCount+1 > l.cfg.MaxRequests || l.window.TokenCount+estimatedTokens > l.cfg.MaxTokens {
		return &ExceededError{RetryAfter: retryAfter(l.window.Start, now, l.cfg.Window)}
	}

	l.window.RequestCount++
	l.window.TokenCount += estimatedTokens
	return nil
}

// Status implements Limiter. An expired window reports full headroom.
func (l *MemoryLimiter) Status(_ context.Context) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return statusOf(l.window, l.cfg, l.now()), nil
}

// Reset implements Limiter.
func (l *MemoryLimiter) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window = Window{Start: l.now()}
	return nil
}

// Snapshot returns a copy of the current window.
func (l *MemoryLimiter) Snapshot() Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window
}

func (l *MemoryLimiter) expired(now time.Time) bool {
	return l.window.Start.IsZero() || now.Sub(l.window.Start) >= l.cfg.Window
}

func statusOf(w Window, cfg Config, now time.Time) Status {
	if w.Start.IsZero() || now.Sub(w.Start) >= cfg.Window {
		return Status{
			RequestsRemaining: cfg.MaxRequests,
			TokensRemaining:   cfg.MaxTokens,
		}
	}
	return Status{
		RequestsRemaining: max(cfg.MaxRequests-w.RequestCount, 0),
		TokensRemaining:   max(cfg.MaxTokens-w.TokenCount, 0),
		WindowResetIn:     w.Start.Add(cfg.Window).Sub(now),
	}
}

// retryAfter returns the wait until the window resets. Both ceilings share
// one window, so the smaller of their waits is the window remainder.
// Never less than one second.
func retryAfter(start, now time.Time, window time.Duration) time.Duration {
	return max(ceilSeconds(start.Add(window).Sub(now)), time.Second)
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}

// Verify MemoryLimiter implements Limiter.
var _ Limiter = (*MemoryLimiter)(nil)
