package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"genstudio/internal/core"
)

// DefaultFilePath is where FileStore keeps its document when no path is configured.
const DefaultFilePath = ".cache/settings.json"

// FileStore keeps every key in a single JSON document on disk.
// Suitable for a single process; writes replace the file atomically.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewFileStore creates a file-backed store at filePath.
func NewFileStore(filePath string) *FileStore {
	if filePath == "" {
		filePath = DefaultFilePath
	}
	return &FileStore{filePath: filePath}
}

func (s *FileStore) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]json.RawMessage) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename settings file: %w", err)
	}
	return nil
}

// Get returns the stored value. Values that are not JSON are stored as JSON strings.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	raw, ok := entries[key]
	if !ok {
		return nil, core.ErrNotFound
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []byte(text), nil
	}
	return []byte(raw), nil
}

// Set stores value under key. JSON objects and arrays are embedded as-is
// so the file stays readable.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = encodeValue(value)
	return s.save(entries)
}

// Delete removes key from the document.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

func encodeValue(value []byte) json.RawMessage {
	if json.Valid(value) && len(value) > 0 && (value[0] == '{' || value[0] == '[') {
		return json.RawMessage(append([]byte(nil), value...))
	}
	quoted, _ := json.Marshal(string(value))
	return quoted
}
