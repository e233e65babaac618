package rewrite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/finblog/internal/domain"
)

const lockKeyPrefix = "draft:lock:"

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

// Locker grants exclusive per-draft access to rewrites and approvals. A
// held lock yields domain.ErrDraftLocked.
type Locker interface {
	Lock(ctx context.Context, draftID string, ttl time.Duration) (Unlock, error)
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker is a SET NX PX lock released only by its holder's token.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, draftID string, ttl time.Duration) (Unlock, error) {
	key := lockKeyPrefix + draftID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire draft lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", draftID, domain.ErrDraftLocked)
	}

	return func(ctx context.Context) error {
		if runErr := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); runErr != nil {
			return fmt.Errorf("release draft lock: %w", runErr)
		}
		return nil
	}, nil
}

// LocalLocker serialises rewrites within one process. Used when Redis is
// disabled.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Lock implements Locker. ttl is ignored.
func (l *LocalLocker) Lock(_ context.Context, draftID string, _ time.Duration) (Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[draftID]; ok {
		return nil, fmt.Errorf("draft %s: %w", draftID, domain.ErrDraftLocked)
	}
	l.held[draftID] = struct{}{}

	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, draftID)
		l.mu.Unlock()
		return nil
	}, nil
}
