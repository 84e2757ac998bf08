package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"orgguard.dev/internal/obs"
)

const defaultKeyPrefix = "orgguard:rl"

// counter is the subset of redis.Cmdable used by the fixed-window limiter.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Redis counts requests per role+client in one-minute fixed windows shared across instances.
// Redis failures let the request through.
type Redis struct {
	rdb    counter
	quotas Quotas
	prefix string
	window time.Duration
	log    *zap.Logger
}

type RedisOption func(*Redis)

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithLogger(l *zap.Logger) RedisOption {
	return func(r *Redis) { r.log = obs.OrNop(l) }
}

func NewRedis(rdb counter, quotas Quotas, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		quotas: quotas,
		prefix: defaultKeyPrefix,
		window: time.Minute,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Allow(ctx context.Context, role, client string) (bool, time.Duration, error) {
	limit, ok := r.quotas.lookup(role)
	if !ok {
		return true, 0, nil
	}
	key := r.prefix + ":" + role + ":" + client

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		r.log.Warn("ratelimit redis incr failed", zap.String("key", key), zap.Error(err))
		return true, 0, nil
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, r.window).Err(); err != nil {
			r.log.Warn("ratelimit redis expire failed", zap.String("key", key), zap.Error(err))
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := r.rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		// a window without expiry would block the client forever
		_ = r.rdb.Expire(ctx, key, r.window).Err()
		ttl = r.window
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return false, ttl, nil
}
