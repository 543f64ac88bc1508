package sessions

import (
	"time"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/prompt"
	"github.com/Desarso/minetchat/stores"
	"github.com/rs/zerolog"
)

// Options carries the per-deployment settings every relay session shares.
type Options struct {
	Model       string
	Temperature float64
	Store       stores.ExchangeStore
	Logger      zerolog.Logger
}

// NewRelaySession creates a session for a single relay request.
func NewRelaySession(generator Generator, builder *prompt.Builder, opts Options) *RelaySession {
	exchangeID := models.NewID()
	return &RelaySession{
		Generator:   generator,
		Prompt:      builder,
		Store:       opts.Store,
		Model:       opts.Model,
		Temperature: opts.Temperature,
		ExchangeID:  exchangeID,
		Logger:      opts.Logger.With().Str("component", "relay").Str("exchange_id", exchangeID).Logger(),
		now:         time.Now,
	}
}
