package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
)

const keyPrefix = "cache:"

// Redis is a Cache shared across instances. Redis failures never fail a
// read: the value is refreshed directly and the error logged.
type Redis struct {
	client *redis.Client
	log    infralogger.Logger
	flight flight
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, log infralogger.Logger) *Redis {
	return &Redis{client: client, log: log}
}

// GetOrRefresh implements Cache. Concurrent misses of one key within this
// process share a single refresh.
func (r *Redis) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh RefreshFunc) ([]byte, error) {
	value, getErr := r.client.Get(ctx, keyPrefix+key).Bytes()
	if getErr == nil {
		return value, nil
	}
	if !errors.Is(getErr, redis.Nil) {
		r.log.Warn("Cache read failed, refreshing directly",
			infralogger.String("key", key),
			infralogger.Error(getErr),
		)
	}

	return r.flight.do(ctx, key, func(ctx context.Context) ([]byte, error) {
		value, err := refresh(ctx)
		if err != nil {
			return nil, err
		}

		if setErr := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); setErr != nil {
			r.log.Warn("Cache write failed",
				infralogger.String("key", key),
				infralogger.Error(setErr),
			)
		}
		return value, nil
	})
}

// Invalidate implements Cache.
func (r *Redis) Invalidate(ctx context.Context, key string) error {
	r.flight.forget(key)
	return r.client.Del(ctx, keyPrefix+key).Err()
}
