package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteUserStore persists the email to username mapping in the user_names table.
type SQLiteUserStore struct {
	db *gorm.DB
}

// NewSQLiteUserStore constructs the store over an opened connection.
func NewSQLiteUserStore(db *gorm.DB) (*SQLiteUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: database connection required")
	}
	return &SQLiteUserStore{db: db}, nil
}

// Lookup returns the stored username for the email.
func (s *SQLiteUserStore) Lookup(ctx context.Context, email string) (string, bool, error) {
	var record userRecord
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record.Username, true, nil
}

// Upsert stores the username for the email, overwriting any prior value.
func (s *SQLiteUserStore) Upsert(ctx context.Context, email, username string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(&userRecord{Email: email, Username: username}).Error
}
