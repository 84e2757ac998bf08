// Package ratelimit enforces per-minute request quotas keyed by role and client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"orgguard.dev/internal/obs"
)

// Limiter decides whether one more request from client under role fits the quota.
// retryAfter is meaningful only when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, role, client string) (allowed bool, retryAfter time.Duration, err error)
}

// Quotas maps role keys to requests per minute. Roles without a quota are not limited.
type Quotas map[string]int

func (q Quotas) lookup(role string) (int, bool) {
	n, ok := q[role]
	return n, ok && n > 0
}

const bucketTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Memory keeps one token bucket per role+client in process memory.
type Memory struct {
	quotas Quotas
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// MemoryOption configures Memory.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the time source.
func WithMemoryClock(fn func() time.Time) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewMemory(quotas Quotas, opts ...MemoryOption) *Memory {
	m := &Memory{
		quotas:  quotas,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Allow(_ context.Context, role, client string) (bool, time.Duration, error) {
	perMinute, ok := m.quotas.lookup(role)
	if !ok {
		return true, 0, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	key := role + ":" + client
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)}
		m.buckets[key] = b
	}
	b.seen = now
	if b.lim.AllowN(now, 1) {
		return true, 0, nil
	}
	res := b.lim.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	if wait < time.Second {
		wait = time.Second
	}
	return false, wait, nil
}

// sweep drops buckets idle for longer than bucketTTL. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < time.Minute {
		return
	}
	m.lastSweep = now
	for k, b := range m.buckets {
		if now.Sub(b.seen) > bucketTTL {
			delete(m.buckets, k)
		}
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Wrap counts and logs rejections of any Limiter.
func Wrap(l Limiter, logger *zap.Logger) Limiter {
	return instrumented{next: l, log: obs.OrNop(logger)}
}

type instrumented struct {
	next Limiter
	log  *zap.Logger
}

func (i instrumented) Allow(ctx context.Context, role, client string) (bool, time.Duration, error) {
	ok, retry, err := i.next.Allow(ctx, role, client)
	if err != nil {
		return ok, retry, err
	}
	if !ok {
		obs.RecordRateLimited(role)
		i.log.Debug("rate limited", zap.String("role", role), zap.String("client", client), zap.Duration("retry_after", retry))
	}
	return ok, retry, nil
}
