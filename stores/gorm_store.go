package stores

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var errNilDB = errors.New("database connection is nil")

// GORMStore implements ExchangeStore on any GORM dialect.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore wraps an existing connection and migrates the exchanges table.
func NewGORMStore(db *gorm.DB) (*GORMStore, error) {
	if db == nil {
		return nil, errNilDB
	}
	if err := db.AutoMigrate(&Exchange{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate exchanges table")
	}
	return &GORMStore{db: db}, nil
}

// SaveExchange inserts an exchange record
func (s *GORMStore) SaveExchange(exchange *Exchange) error {
	if s.db == nil {
		return errNilDB
	}
	if exchange.ExchangeID == "" {
		return errors.New("exchange id is required")
	}
	if err := s.db.Create(exchange).Error; err != nil {
		return errors.Wrapf(err, "failed to save exchange %s", exchange.ExchangeID)
	}
	return nil
}

func (s *GORMStore) RecentExchanges(limit int) ([]*Exchange, error) {
	if s.db == nil {
		return nil, errNilDB
	}
	query := s.db.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var exchanges []*Exchange
	if err := query.Find(&exchanges).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch exchanges")
	}
	return exchanges, nil
}

func (s *GORMStore) PurgeBefore(cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNilDB
	}
	res := s.db.Where("created_at < ?", cutoff).Delete(&Exchange{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to purge exchanges")
	}
	return res.RowsAffected, nil
}

// Ping checks if the database connection is alive
func (s *GORMStore) Ping() error {
	if s.db == nil {
		return errNilDB
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
