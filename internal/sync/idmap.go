package sync

import (
	"sync"

	"github.com/rs/zerolog"

	"todo-sync/internal/store"
)

// IDMap is the persisted localID-to-remoteID mapping. It is populated
// while syncing and lets the remote adapter translate category references
// without re-deriving the match by name on every write.
type IDMap struct {
	mu      sync.RWMutex
	entries map[string]string
	store   *store.Store
	logger  zerolog.Logger
}

func NewIDMap(s *store.Store, logger zerolog.Logger) *IDMap {
	m := &IDMap{
		entries: map[string]string{},
		store:   s,
		logger:  logger,
	}
	s.Get(store.KeyIDMap, &m.entries)
	return m
}

func (m *IDMap) RemoteID(localID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	remoteID, ok := m.entries[localID]
	return remoteID, ok
}

// Record persists the pair immediately. A failed persist keeps the
// in-memory entry; the mapping is rebuilt on the next sync pass anyway.
func (m *IDMap) Record(localID, remoteID string) {
	m.mu.Lock()
	m.entries[localID] = remoteID
	snapshot := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}
	m.mu.Unlock()

	if !m.store.Set(store.KeyIDMap, snapshot) {
		m.logger.Warn().Str("localId", localID).Msg("id-map persist failed")
	}
}

func (m *IDMap) Clear() {
	m.mu.Lock()
	m.entries = map[string]string{}
	m.mu.Unlock()
	m.store.Remove(store.KeyIDMap)
}

func (m *IDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
