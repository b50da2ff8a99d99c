package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process cache. Expired entries are dropped lazily on read;
// suitable for single-instance deployments and tests.
type Memory[V any] struct {
	mu         sync.RWMutex
	items      map[string]memoryItem[V]
	defaultTTL time.Duration
}

type memoryItem[V any] struct {
	value     V
	expiresAt time.Time // zero means never
}

// NewMemory creates an in-memory cache with the given default TTL.
func NewMemory[V any](defaultTTL time.Duration) *Memory[V] {
	return &Memory[V]{
		items:      make(map[string]memoryItem[V]),
		defaultTTL: defaultTTL,
	}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	var zero V

	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return zero, ErrNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return zero, ErrNotFound
	}
	return item.value, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = memoryItem[V]{value: value, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

var _ Cache[int] = (*Memory[int])(nil)
