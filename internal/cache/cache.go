// Package cache provides a read-through cache with explicit expiry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RefreshFunc produces a fresh value for a missing or expired key.
type RefreshFunc func(ctx context.Context) ([]byte, error)

// Cache returns the cached value for key, calling refresh and storing its
// result for ttl on a miss. A refresh error is returned and nothing is stored.
type Cache interface {
	GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh RefreshFunc) ([]byte, error)
	Invalidate(ctx context.Context, key string) error
}

// GetOrRefreshJSON is GetOrRefresh for a JSON-encoded T.
func GetOrRefreshJSON[T any](
	ctx context.Context,
	c Cache,
	key string,
	ttl time.Duration,
	refresh func(ctx context.Context) (T, error),
) (T, error) {
	var out T

	raw, err := c.GetOrRefresh(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, refreshErr := refresh(ctx)
		if refreshErr != nil {
			return nil, refreshErr
		}
		return json.Marshal(value)
	})
	if err != nil {
		return out, err
	}

	if unmarshalErr := json.Unmarshal(raw, &out); unmarshalErr != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, unmarshalErr)
	}

	return out, nil
}
