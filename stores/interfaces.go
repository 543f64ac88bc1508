package stores

import (
	"encoding/json"
	"time"

	"github.com/Desarso/minetchat/models"
	"gorm.io/gorm"
)

// Exchange statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Exchange records one relay call: the history the client sent and the text
// the model streamed back. Exchanges are never read back into prompts.
type Exchange struct {
	ID           uint             `gorm:"primarykey" json:"-"`
	CreatedAt    time.Time        `gorm:"index" json:"created_at"`
	ExchangeID   string           `gorm:"uniqueIndex;not null" json:"exchange_id"`
	Model        string           `json:"model"`
	Status       string           `gorm:"index;not null" json:"status"`
	MessagesJSON string           `gorm:"type:text" json:"-"`
	Messages     []models.Message `gorm:"-" json:"messages"`
	Response     string           `gorm:"type:text" json:"response"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Error        string           `gorm:"type:text" json:"error,omitempty"`
	DurationMS   int64            `json:"duration_ms"`
}

// BeforeSave marshals Messages to MessagesJSON
func (e *Exchange) BeforeSave(tx *gorm.DB) error {
	if e.Messages != nil {
		data, err := json.Marshal(e.Messages)
		if err != nil {
			return err
		}
		e.MessagesJSON = string(data)
	}
	return nil
}

// AfterFind unmarshals MessagesJSON to Messages
func (e *Exchange) AfterFind(tx *gorm.DB) error {
	if e.MessagesJSON != "" {
		return json.Unmarshal([]byte(e.MessagesJSON), &e.Messages)
	}
	return nil
}

// ExchangeStore persists relay transcripts.
type ExchangeStore interface {
	SaveExchange(exchange *Exchange) error
	// RecentExchanges returns the newest exchanges first.
	RecentExchanges(limit int) ([]*Exchange, error)
	// PurgeBefore deletes exchanges created before cutoff and reports how many.
	PurgeBefore(cutoff time.Time) (int64, error)

	Ping() error
	Close() error
}

// StoreConfig holds configuration for database stores
type StoreConfig struct {
	Type       string            `json:"type" mapstructure:"type"`             // "none", "sqlite", "postgres"
	Connection string            `json:"connection" mapstructure:"connection"` // path or DSN
	Options    map[string]string `json:"options" mapstructure:"options"`
}

// NewStoreConfig creates a new store configuration
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

// WithOption adds an option to the store configuration
func (c *StoreConfig) WithOption(key, value string) *StoreConfig {
	if c.Options == nil {
		c.Options = make(map[string]string)
	}
	c.Options[key] = value
	return c
}
