package storage

import (
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type messageRecord struct {
	Seq              int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	MessageID        string `gorm:"column:message_id;size:190;not null;uniqueIndex"`
	Sender           string `gorm:"column:sender;size:320;not null"`
	Email            string `gorm:"column:email;size:320;not null"`
	Text             string `gorm:"column:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

func (messageRecord) TableName() string {
	return "chat_messages"
}

type userRecord struct {
	Email     string    `gorm:"column:email;primaryKey;size:320;not null"`
	Username  string    `gorm:"column:username;size:320;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (userRecord) TableName() string {
	return "user_names"
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, historyLimit int, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&messageRecord{}, &userRecord{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, historyLimit, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

const migrationTrimMessageLog = "2026-08-20_trim_message_log_to_limit"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, historyLimit int, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{
			name: migrationTrimMessageLog,
			apply: func(db *gorm.DB) error {
				return trimMessageLog(db, historyLimit)
			},
		},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// trimMessageLog drops the oldest records beyond the retention limit. Runs at
// startup so a lowered limit takes effect on logs written by older builds.
func trimMessageLog(db *gorm.DB, limit int) error {
	if limit <= 0 {
		return nil
	}
	return db.Exec(
		"DELETE FROM chat_messages WHERE seq NOT IN (SELECT seq FROM chat_messages ORDER BY seq DESC LIMIT ?)",
		limit,
	).Error
}
