// Package ratelimit throttles the continuous cleanup loop and other
// automation triggers so they cannot hammer a MailProvider or flood a job
// queue. The call order is semaphore, then debounce, then sliding-window
// rate limit, matching the layering the automation engine expects before an
// API call goes out.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the limits one APIProtector enforces across every registered
// user's automation ticks and the executor's provider calls.
type Config struct {
	// MaxConcurrent bounds how many enqueue attempts (across all users) a
	// single automation tick may have in flight at once.
	MaxConcurrent int

	// RequestsPerSecond/BurstSize bound how often one (user, trigger) key
	// may fire a cleanup job — config.TargetEmailsPerMinute converts to
	// this at construction time.
	RequestsPerSecond int
	BurstSize         int

	// DebounceDuration suppresses a second automation trigger for the same
	// (user, trigger) key within this window, so e.g. a storage-threshold
	// event and the continuous loop don't both enqueue a job for the same
	// user in the same tick.
	DebounceDuration time.Duration

	// MaxPayloadSize is the ceiling MemoryGuard enforces on one
	// BatchModify/export chunk — config.ProviderBatchMaxSize.
	MaxPayloadSize int
}

// DefaultConfig returns the fallback used when a caller has no
// config.Config to derive limits from (tests, or construction before
// config.Load()).
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:     100,
		RequestsPerSecond: 10,
		BurstSize:         20,
		DebounceDuration:  1 * time.Minute,
		MaxPayloadSize:    50,
	}
}

// APIProtector is the one rate limiter automation.Engine shares across its
// continuous/scheduler/event ticks, keyed per (user, trigger) so a noisy
// user can never starve another user's cleanup run.
type APIProtector struct {
	config      *Config
	semaphore   chan struct{}
	rateLimiter *SlidingWindowLimiter
	debouncer   *Debouncer
	guard       *MemoryGuard
	redis       *redis.Client
	mu          sync.RWMutex
}

// NewAPIProtector builds the shared limiter automation.Engine hands to every
// tick. redisClient may be nil (single-process dev mode), in which case the
// sliding window degrades to "always allow" and debounce falls back to an
// in-process map.
func NewAPIProtector(redisClient *redis.Client, config *Config) *APIProtector {
	if config == nil {
		config = DefaultConfig()
	}

	return &APIProtector{
		config:      config,
		semaphore:   make(chan struct{}, config.MaxConcurrent),
		rateLimiter: NewSlidingWindowLimiter(redisClient, config.RequestsPerSecond, config.BurstSize),
		debouncer:   NewDebouncer(redisClient, config.DebounceDuration),
		guard:       NewMemoryGuard(config.MaxPayloadSize),
		redis:       redisClient,
	}
}

// ProtectionResult reports whether an automation trigger may enqueue its
// cleanup job, and why not when it may not.
type ProtectionResult struct {
	Allowed      bool
	Reason       string
	ShouldWait   bool
	WaitDuration time.Duration
	FromDebounce bool
}

// Acquire gates one automation trigger for key (typically "trigger:userID",
// e.g. "continuous:u_123" or "scheduled:u_123:policy_9"). The returned
// release func must be called once the triggered job has been enqueued (or
// the attempt abandoned) to free the concurrency slot.
func (p *APIProtector) Acquire(ctx context.Context, key string) (*ProtectionResult, func()) {
	select {
	case p.semaphore <- struct{}{}:
	default:
		return &ProtectionResult{
			Allowed: false,
			Reason:  "too many concurrent requests",
		}, nil
	}

	releaseFunc := func() {
		<-p.semaphore
	}

	if p.debouncer.IsDuplicate(ctx, key) {
		releaseFunc()
		return &ProtectionResult{
			Allowed:      false,
			Reason:       "duplicate request (debounced)",
			FromDebounce: true,
		}, nil
	}

	allowed, waitDuration := p.rateLimiter.Allow(ctx, key)
	if !allowed {
		releaseFunc()
		return &ProtectionResult{
			Allowed:      false,
			Reason:       "rate limit exceeded",
			ShouldWait:   waitDuration > 0,
			WaitDuration: waitDuration,
		}, nil
	}

	p.debouncer.Mark(ctx, key)

	return &ProtectionResult{Allowed: true}, releaseFunc
}

// AcquireWithWait retries Acquire once after sleeping out a rate-limit wait,
// used by the scheduler tick so a policy due right at the edge of its window
// doesn't get skipped for a full tick interval.
func (p *APIProtector) AcquireWithWait(ctx context.Context, key string, maxWait time.Duration) (*ProtectionResult, func()) {
	result, release := p.Acquire(ctx, key)

	if !result.Allowed && result.ShouldWait && result.WaitDuration <= maxWait {
		select {
		case <-time.After(result.WaitDuration):
			return p.Acquire(ctx, key)
		case <-ctx.Done():
			return &ProtectionResult{
				Allowed: false,
				Reason:  "context cancelled",
			}, nil
		}
	}

	return result, release
}

// MaxPayloadSize returns the configured chunk-size ceiling, the same value
// the executor's MemoryGuard enforces on BatchModify/export calls.
func (p *APIProtector) MaxPayloadSize() int {
	return p.config.MaxPayloadSize
}

// Guard exposes the protector's MemoryGuard so the executor can clamp a
// caller-requested chunk size to the same ceiling the rate limiter was
// configured with, without constructing a second guard.
func (p *APIProtector) Guard() *MemoryGuard {
	return p.guard
}

// SlidingWindowLimiter enforces a per-(user,trigger) cap on how many
// cleanup-job enqueues Redis will admit within a rolling one-second window,
// independent of the in-process semaphore.
type SlidingWindowLimiter struct {
	redis     *redis.Client
	rate      int           // jobs per window
	window    time.Duration // window size
	burstSize int           // allowed burst above rate
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(redisClient *redis.Client, requestsPerSecond, burstSize int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:     redisClient,
		rate:      requestsPerSecond,
		window:    time.Second,
		burstSize: burstSize,
	}
}

// Allow reports whether key may enqueue another job now, and if not, how
// long until the oldest entry in its window ages out.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil {
		return true, 0
	}

	now := time.Now()
	windowStart := now.Add(-l.window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	// Lua script for atomic sliding window check
	script := redis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local max_requests = tonumber(ARGV[3])
		local window_ms = tonumber(ARGV[4])

		-- Remove old entries
		redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

		-- Count current requests
		local count = redis.call('ZCARD', key)

		if count < max_requests then
			-- Add new request
			redis.call('ZADD', key, now, now .. '-' .. math.random())
			redis.call('PEXPIRE', key, window_ms * 2)
			return 1
		else
			-- Get oldest entry to calculate wait time
			local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
			if #oldest > 0 then
				return -(oldest[2] + window_ms - now)
			end
			return 0
		end
	`)

	result, err := script.Run(ctx, l.redis, []string{redisKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.rate+l.burstSize,
		l.window.Milliseconds(),
	).Int64()

	if err != nil {
		return true, 0
	}

	if result == 1 {
		return true, 0
	}

	// result is negative wait time in milliseconds
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}

	return false, l.window
}

// Debouncer suppresses a second automation trigger for the same (user,
// trigger) key within its window — e.g. a storage-critical event firing on
// two consecutive ticks before the cleanup it already enqueued has run.
type Debouncer struct {
	redis    *redis.Client
	duration time.Duration
	local    map[string]time.Time // fallback when redis is nil
	mu       sync.RWMutex
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(redisClient *redis.Client, duration time.Duration) *Debouncer {
	return &Debouncer{
		redis:    redisClient,
		duration: duration,
		local:    make(map[string]time.Time),
	}
}

// IsDuplicate reports whether key already triggered within the debounce window.
func (d *Debouncer) IsDuplicate(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("debounce:%s", key)

	if d.redis != nil {
		exists, err := d.redis.Exists(ctx, redisKey).Result()
		if err == nil {
			return exists > 0
		}
	}

	d.mu.RLock()
	lastTime, exists := d.local[key]
	d.mu.RUnlock()

	if exists && time.Since(lastTime) < d.duration {
		return true
	}

	return false
}

// Mark marks this request as processed.
func (d *Debouncer) Mark(ctx context.Context, key string) {
	redisKey := fmt.Sprintf("debounce:%s", key)

	if d.redis != nil {
		d.redis.Set(ctx, redisKey, "1", d.duration)
	}

	d.mu.Lock()
	d.local[key] = time.Now()
	d.mu.Unlock()

	go d.cleanup()
}

func (d *Debouncer) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for k, v := range d.local {
		if now.Sub(v) > d.duration*2 {
			delete(d.local, k)
		}
	}
}

// MemoryGuard caps how many message ids the executor loads into memory and
// ships to the provider in a single BatchModify or export call, independent
// of whatever chunk size a caller asked for.
type MemoryGuard struct {
	MaxPayloadSize int
}

// NewMemoryGuard creates a new memory guard.
func NewMemoryGuard(maxPayloadSize int) *MemoryGuard {
	return &MemoryGuard{MaxPayloadSize: maxPayloadSize}
}

// LimitInt limits integer value to max.
func (g *MemoryGuard) LimitInt(value, max int) int {
	if value > max {
		return max
	}
	return value
}

// LimitPayloadSize clamps a requested chunk size to MaxPayloadSize — the
// executor calls this before slicing its candidate list into chunks.
func (g *MemoryGuard) LimitPayloadSize(value int) int {
	if value > g.MaxPayloadSize {
		return g.MaxPayloadSize
	}
	return value
}

// LimitSliceLen returns min(len, MaxPayloadSize), used when truncating a
// caller-supplied id list before it ever reaches the executor.
func (g *MemoryGuard) LimitSliceLen(sliceLen int) int {
	if sliceLen > g.MaxPayloadSize {
		return g.MaxPayloadSize
	}
	return sliceLen
}
