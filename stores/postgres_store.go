package stores

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config *StoreConfig) (*GORMStore, error) {
	if config.Type != "postgres" {
		return nil, errors.Errorf("invalid store type for PostgreSQL store: %s", config.Type)
	}

	db, err := gorm.Open(postgres.Open(config.Connection), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL database")
	}
	return NewGORMStore(db)
}

// NewPostgresStoreSimple creates a new PostgreSQL store with just a DSN
func NewPostgresStoreSimple(dsn string) (*GORMStore, error) {
	return NewPostgresStore(NewStoreConfig("postgres", dsn))
}
