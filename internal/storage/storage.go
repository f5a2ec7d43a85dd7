package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore persists a single JSON document with atomic replacement.
type JSONStore struct {
	mu       sync.RWMutex
	filepath string
}

// NewJSONStore creates a store for path. The file is created on first Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{filepath: path}
}

// Path returns the backing file.
func (s *JSONStore) Path() string { return s.filepath }

// Save marshals v to a temp file and renames it over the target.
func (s *JSONStore) Save(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteJSON(s.filepath, v)
}

// Load unmarshals the stored document into v.
func (s *JSONStore) Load(v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ReadJSON(s.filepath, v)
}

// WriteJSON writes v as indented JSON via temp file and atomic rename.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, path)
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
