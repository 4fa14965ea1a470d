// Package storage provides a small JSON key/value store standing in for the
// browser's local storage: per-user display name, capped chat history, system
// prompt override, language and feature toggles.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys used across the application.
const (
	KeyUserName     = "userName"
	KeyChatHistory  = "chatHistory"
	KeySystemPrompt = "systemPrompt"
	KeyLanguage     = "language"
	KeyEnableVoice  = "enableVoice"
	KeyEnableAvatar = "enableAvatar"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// Store persists JSON values under string keys, backed by a single file.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string]json.RawMessage
}

// Open loads (or creates) a store at path. A missing or corrupt file starts
// the store empty rather than failing, mirroring local-storage semantics.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		// Corrupt store resets to empty.
		s.data = make(map[string]json.RawMessage)
	}
	return s, nil
}

// NewMemory returns a store that never touches disk, for tests and tools.
func NewMemory() *Store {
	return &Store{data: make(map[string]json.RawMessage)}
}

// Get unmarshals the stored value for key into out.
func (s *Store) Get(key string, out any) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode stored value for %q: %w", key, err)
	}
	return nil
}

// GetString returns the stored string for key, or fallback when absent or
// undecodable.
func (s *Store) GetString(key, fallback string) string {
	var value string
	if err := s.Get(key, &value); err != nil {
		return fallback
	}
	return value
}

// GetBool returns the stored bool for key, or fallback when absent.
func (s *Store) GetBool(key string, fallback bool) bool {
	var value bool
	if err := s.Get(key, &value); err != nil {
		return fallback
	}
	return value
}

// Set stores value under key and flushes to disk.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.flushLocked()
}

// Remove deletes key and flushes to disk. Removing an absent key is a no-op.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
