package storage

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/config"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
	"go.uber.org/zap"
)

// Stores bundles the opened persistence engines.
type Stores struct {
	Users    users.Store
	Messages chat.MessageStore
	Close    func() error
}

// Open selects the persistence engine from configuration.
func Open(cfg config.AppConfig, logger *zap.Logger) (*Stores, error) {
	switch cfg.StorageDriver {
	case config.DriverFile:
		userStore, err := NewFileUserStore(cfg.UsersPath, logger)
		if err != nil {
			return nil, err
		}
		messageStore, err := NewFileMessageStore(cfg.MessagesPath, cfg.HistoryLimit, logger)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:    userStore,
			Messages: messageStore,
			Close:    func() error { return nil },
		}, nil

	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.DatabasePath, cfg.HistoryLimit, logger)
		if err != nil {
			return nil, err
		}
		userStore, err := NewSQLiteUserStore(db)
		if err != nil {
			return nil, err
		}
		messageStore, err := NewSQLiteMessageStore(db, cfg.HistoryLimit)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:    userStore,
			Messages: messageStore,
			Close:    sqlDB.Close,
		}, nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StorageDriver)
	}
}
