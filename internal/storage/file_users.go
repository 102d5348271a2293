package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileUserStore keeps the email to username mapping as one JSON object on
// disk, rewritten in full on every mutation.
type FileUserStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileUserStore constructs the store and ensures the parent directory exists.
func NewFileUserStore(path string, logger *zap.Logger) (*FileUserStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: users path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure users dir: %w", err)
	}
	return &FileUserStore{path: path, logger: logger}, nil
}

// Lookup returns the stored username for the email.
func (s *FileUserStore) Lookup(_ context.Context, email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load()
	username, ok := entries[email]
	return username, ok, nil
}

// Upsert stores the username for the email, overwriting any prior value.
func (s *FileUserStore) Upsert(_ context.Context, email, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load()
	entries[email] = username
	return s.write(entries)
}

func (s *FileUserStore) load() map[string]string {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("user mapping unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return map[string]string{}
	}
	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		s.logger.Warn("user mapping malformed, starting empty", zap.String("path", s.path), zap.Error(err))
		return map[string]string{}
	}
	return entries
}

func (s *FileUserStore) write(entries map[string]string) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode user mapping: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write user mapping: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage: replace user mapping: %w", err)
	}
	return nil
}
