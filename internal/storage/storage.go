// Package storage provides the persistence backends for analysis
// history: an in-memory store, a write-through JSON snapshot store, and
// an opt-in SQLite store for larger histories.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SaveJSONFile marshals v and writes it to path via a temp file rename,
// so readers never observe a partial document.
func SaveJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// LoadJSONFile reads path into v. A missing file is not an error; the
// caller keeps its zero state.
func LoadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}
