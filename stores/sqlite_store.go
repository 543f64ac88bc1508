package stores

import (
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(config *StoreConfig) (*GORMStore, error) {
	if config.Type != "sqlite" {
		return nil, errors.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	db, err := gorm.Open(sqlite.Open(config.Connection), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SQLite database")
	}
	return NewGORMStore(db)
}

// NewSQLiteStoreSimple creates a new SQLite store with just a file path
func NewSQLiteStoreSimple(dbPath string) (*GORMStore, error) {
	return NewSQLiteStore(NewStoreConfig("sqlite", dbPath))
}
