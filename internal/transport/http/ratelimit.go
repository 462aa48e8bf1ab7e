package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more event for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// rateLimiter is a fixed-window counter for a single websocket connection.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counter int
	start   time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{limit: limit, window: time.Minute}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.start) >= r.window {
		r.start = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}

// MemoryLimiter is a per-key fixed-window limiter for a single process.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*rateLimiter
}

// NewMemoryLimiter allows limit events per key per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, windows: make(map[string]*rateLimiter)}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	rl, ok := m.windows[key]
	if !ok {
		rl = &rateLimiter{limit: m.limit, window: m.window}
		m.windows[key] = rl
	}
	// Drop stale keys so the map does not grow with every client IP.
	if len(m.windows) > 4096 {
		now := time.Now()
		for k, w := range m.windows {
			w.mu.Lock()
			stale := now.Sub(w.start) >= m.window
			w.mu.Unlock()
			if k != key && stale {
				delete(m.windows, k)
			}
		}
	}
	m.mu.Unlock()

	return rl.allow(), nil
}

var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// RedisLimiter is a fixed-window limiter shared by every process using the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows limit events per key per window. The client is owned by the caller.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("run rate limit script: %w", err)
	}
	return count <= int64(l.limit), nil
}
