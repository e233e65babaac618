// Package dedup recognises candidate items by the hash of (title, link).
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/domain"
)

const (
	seenKeyPrefix  = "dedup:candidate:"
	defaultSeenTTL = 72 * time.Hour
)

// CandidateStore is the unique-constraint-backed candidate table.
type CandidateStore interface {
	InsertCandidate(ctx context.Context, item *domain.CandidateItem) (bool, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
}

// Result reports the outcome of Record.
type Result struct {
	Inserted bool
}

// Index answers duplicate checks from Redis when it can and from the store
// otherwise. Redis only ever holds hashes already stored, so a Redis miss
// or outage falls through and never produces a false negative.
type Index struct {
	store  CandidateStore
	client *redis.Client
	ttl    time.Duration
	log    infralogger.Logger
}

// NewIndex creates an index. client may be nil.
func NewIndex(store CandidateStore, client *redis.Client, ttl time.Duration, log infralogger.Logger) *Index {
	if ttl <= 0 {
		ttl = defaultSeenTTL
	}
	return &Index{store: store, client: client, ttl: ttl, log: log}
}

// IsDuplicate reports whether hash is already stored.
func (i *Index) IsDuplicate(ctx context.Context, hash string) (bool, error) {
	if i.seen(ctx, hash) {
		return true, nil
	}

	exists, err := i.store.ExistsByHash(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		i.markSeen(ctx, hash)
	}

	return exists, nil
}

// Record persists item on first sight. A hash collision is Inserted=false.
func (i *Index) Record(ctx context.Context, item *domain.CandidateItem) (Result, error) {
	if item.ContentHash == "" {
		item.ContentHash = domain.ContentHash(item.Title, item.Link)
	}

	inserted, err := i.store.InsertCandidate(ctx, item)
	if err != nil {
		return Result{}, fmt.Errorf("dedup record: %w", err)
	}

	i.markSeen(ctx, item.ContentHash)
	return Result{Inserted: inserted}, nil
}

func (i *Index) seen(ctx context.Context, hash string) bool {
	if i.client == nil {
		return false
	}

	n, err := i.client.Exists(ctx, seenKeyPrefix+hash).Result()
	if err != nil {
		i.log.Debug("Dedup cache unavailable", infralogger.Error(err))
		return false
	}
	return n > 0
}

func (i *Index) markSeen(ctx context.Context, hash string) {
	if i.client == nil {
		return
	}

	if err := i.client.Set(ctx, seenKeyPrefix+hash, 1, i.ttl).Err(); err != nil {
		i.log.Debug("Dedup cache write failed", infralogger.Error(err))
	}
}
