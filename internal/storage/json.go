package storage

import (
	"path/filepath"
	"sync"

	"github.com/perfwatch/perfwatch/internal/stats"
)

const historyFileName = "history.json"

// JSONStore persists the full history snapshot as one JSON document,
// rewritten on every save.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore stores history under dataDir.
func NewJSONStore(dataDir string) *JSONStore {
	return &JSONStore{path: filepath.Join(dataDir, historyFileName)}
}

func (s *JSONStore) Save(snap *stats.HistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SaveJSONFile(s.path, snap)
}

func (s *JSONStore) Load() (*stats.HistorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap stats.HistorySnapshot
	if err := LoadJSONFile(s.path, &snap); err != nil {
		return nil, err
	}
	if snap.DataPoints == nil && snap.SavedAt.IsZero() {
		return nil, nil
	}
	return &snap, nil
}
