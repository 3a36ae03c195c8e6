package cache

import (
	"path"
	"sync"
	"time"
)

// MemoryCache is the in-process L1. Entries expire lazily on read; the
// working set here is a handful of list/stats keys, so no sweeper runs.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	metrics *CacheMetrics
}

type memoryItem struct {
	value     interface{}
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:   make(map[string]memoryItem),
		metrics: NewCacheMetrics(),
	}
}

func (m *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	m.items[key] = item
	m.metrics.RecordSet()
}

func (m *MemoryCache) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	item, found := m.items[key]
	m.mu.RUnlock()

	if !found {
		m.metrics.RecordMiss()
		return nil, false
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		m.metrics.RecordMiss()
		return nil, false
	}

	m.metrics.RecordHit()
	return item.value, true
}

func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	m.metrics.RecordDelete()
}

// DeletePattern removes keys matching a glob pattern like "tasks:*".
func (m *MemoryCache) DeletePattern(pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	m.metrics.RecordDelete()
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Stats() map[string]interface{} {
	metrics := m.metrics.GetStats()
	return map[string]interface{}{
		"entries": m.Len(),
		"hits":    metrics.Hits,
		"misses":  metrics.Misses,
		"sets":    metrics.Sets,
		"deletes": metrics.Deletes,
	}
}
