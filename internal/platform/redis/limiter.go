package redis

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter: at most limit calls per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type counter interface {
	TxPipelined(ctx context.Context, fn func(goredis.Pipeliner) error) ([]goredis.Cmder, error)
}

type RedisLimiter struct {
	client counter
}

func NewRedisLimiter(client counter) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow sends INCR and EXPIRE NX in one transaction on every call, so a key
// whose TTL was lost gets one again on the next request.
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	var incr *goredis.IntCmd
	if _, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, window)
		return nil
	}); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

type window struct {
	count int
	reset time.Time
}

// LocalLimiter keeps windows in memory; limits are per process.
type LocalLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, d time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(d)}
		l.windows[key] = w
		l.gc(now)
	}
	w.count++
	return w.count <= limit, nil
}

// gc drops expired windows so idle keys do not accumulate.
func (l *LocalLimiter) gc(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, k)
		}
	}
}
