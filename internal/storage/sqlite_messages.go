package storage

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"gorm.io/gorm"
)

// SQLiteMessageStore persists the message log in the chat_messages table.
type SQLiteMessageStore struct {
	db    *gorm.DB
	limit int
}

// NewSQLiteMessageStore constructs the store over an opened connection.
func NewSQLiteMessageStore(db *gorm.DB, limit int) (*SQLiteMessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: database connection required")
	}
	if limit <= 0 {
		limit = chat.DefaultHistoryLimit
	}
	return &SQLiteMessageStore{db: db, limit: limit}, nil
}

// Append inserts the record and trims the oldest rows beyond the limit in one
// transaction.
func (s *SQLiteMessageStore) Append(ctx context.Context, message chat.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := messageRecord{
			MessageID:        message.ID,
			Sender:           message.Sender,
			Email:            message.Email,
			Text:             message.Text,
			CreatedAtSeconds: message.CreatedAtSeconds,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return trimMessageLog(tx, s.limit)
	})
}

// List returns the full log in insertion order.
func (s *SQLiteMessageStore) List(ctx context.Context) ([]chat.Message, error) {
	var records []messageRecord
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	messages := make([]chat.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, chat.Message{
			ID:               record.MessageID,
			Sender:           record.Sender,
			Email:            record.Email,
			Text:             record.Text,
			CreatedAtSeconds: record.CreatedAtSeconds,
		})
	}
	return messages, nil
}
