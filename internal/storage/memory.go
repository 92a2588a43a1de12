package storage

import (
	"sync"

	"github.com/perfwatch/perfwatch/internal/stats"
)

// MemoryStore keeps the latest snapshot in memory. Used in tests and
// when persistence is disabled.
type MemoryStore struct {
	mu   sync.Mutex
	snap *stats.HistorySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(snap *stats.HistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

func (s *MemoryStore) Load() (*stats.HistorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}
