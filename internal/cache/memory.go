package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local Cache. The zero value is not usable; call NewMemory.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	flight  flight
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

// GetOrRefresh implements Cache. Concurrent misses of one key share a single
// refresh.
func (m *Memory) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh RefreshFunc) ([]byte, error) {
	if value, ok := m.lookup(key); ok {
		return value, nil
	}

	return m.flight.do(ctx, key, func(ctx context.Context) ([]byte, error) {
		if value, ok := m.lookup(key); ok {
			return value, nil
		}
		value, err := refresh(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
		m.mu.Unlock()
		return value, nil
	})
}

func (m *Memory) lookup(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Invalidate implements Cache.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	m.flight.forget(key)
	return nil
}
