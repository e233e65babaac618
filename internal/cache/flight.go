package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a shared refresh once it is detached from the
// caller that started it.
const refreshTimeout = 30 * time.Second

// flight collapses concurrent refreshes of one key into a single call.
// Waiters give up on their own context; the refresh itself keeps running for
// the others.
type flight struct {
	group singleflight.Group
}

func (f *flight) do(ctx context.Context, key string, fn RefreshFunc) ([]byte, error) {
	ch := f.group.DoChan(key, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return fn(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		value, _ := res.Val.([]byte)
		return value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *flight) forget(key string) {
	f.group.Forget(key)
}
