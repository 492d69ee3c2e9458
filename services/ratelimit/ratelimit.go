// Package ratelimit counts attempts per key in fixed time windows stored in Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Limiter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// New allows `limit` attempts per key every `window`. A nil client or a non positive limit allows everything.
func New(rdb *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "jifunze:ratelimit"
	}
	return &Limiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window}
}

// Allow records an attempt for `key`. When the attempt is refused, it also returns how long
// until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 || l.window <= 0 {
		return true, 0, nil
	}

	rkey := l.prefix + ":" + key
	count, err := l.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "ratelimit incr")
	}
	if count == 1 {
		if err = l.rdb.Expire(ctx, rkey, l.window).Err(); err != nil {
			return false, 0, errors.Wrap(err, "ratelimit expire")
		}
	}
	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, rkey).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "ratelimit ttl")
	}
	if ttl < 0 {
		// the key lost its expiry (crash between INCR and EXPIRE): start a new window
		if err = l.rdb.Expire(ctx, rkey, l.window).Err(); err != nil {
			return false, 0, errors.Wrap(err, "ratelimit expire")
		}
		ttl = l.window
	}
	return false, ttl, nil
}

// Reset forgets the attempts of `key`.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return errors.Wrap(l.rdb.Del(ctx, l.prefix+":"+key).Err(), "ratelimit reset")
}

// Open connects to the Redis server at `url` (redis://[:password@]host:port/db).
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opts)
	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}
