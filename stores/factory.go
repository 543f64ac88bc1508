package stores

import (
	"fmt"

	"github.com/pkg/errors"
)

// NewStore creates a store based on the configuration. Type "none" or an
// empty type disables recording and returns a nil store.
func NewStore(config *StoreConfig) (ExchangeStore, error) {
	if config == nil {
		return nil, nil
	}
	switch config.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		store, err := NewSQLiteStore(config)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStore(config)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Errorf("unsupported store type: %s", config.Type)
	}
}

// PostgresDSN builds a DSN from discrete connection parameters.
func PostgresDSN(host, user, password, dbname string, port int) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)
}
