package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"go.uber.org/zap"
)

// FileMessageStore keeps the message log as one JSON array on disk, rewritten
// in full on every mutation. A mutex serializes read-modify-write cycles so
// concurrent submissions cannot lose records.
type FileMessageStore struct {
	path   string
	limit  int
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileMessageStore constructs the store and ensures the parent directory exists.
func NewFileMessageStore(path string, limit int, logger *zap.Logger) (*FileMessageStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: messages path required")
	}
	if limit <= 0 {
		limit = chat.DefaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure messages dir: %w", err)
	}
	return &FileMessageStore{path: path, limit: limit, logger: logger}, nil
}

// Append adds the record and drops the oldest records beyond the limit.
func (s *FileMessageStore) Append(_ context.Context, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.load()
	messages = append(messages, message)
	if len(messages) > s.limit {
		messages = messages[len(messages)-s.limit:]
	}
	return s.write(messages)
}

// List returns the full log in insertion order.
func (s *FileMessageStore) List(_ context.Context) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// load tolerates a missing or malformed file by treating it as an empty log.
func (s *FileMessageStore) load() []chat.Message {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("message log unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return []chat.Message{}
	}
	var messages []chat.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		s.logger.Warn("message log malformed, starting empty", zap.String("path", s.path), zap.Error(err))
		return []chat.Message{}
	}
	return messages
}

func (s *FileMessageStore) write(messages []chat.Message) error {
	raw, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode message log: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write message log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage: replace message log: %w", err)
	}
	return nil
}
