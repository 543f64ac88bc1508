// Package minetchat wires the relay, its generation backend and the optional
// transcript store from a Config.
package minetchat

import (
	"time"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/models/gemini"
	"github.com/Desarso/minetchat/models/googleai"
	"github.com/Desarso/minetchat/prompt"
	"github.com/Desarso/minetchat/server"
	"github.com/Desarso/minetchat/sessions"
	"github.com/Desarso/minetchat/stores"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type (
	Generator    = sessions.Generator
	RelaySession = sessions.RelaySession
	RelayError   = sessions.RelayError
	StreamWriter = sessions.StreamWriter
)

// App is a configured relay. Close releases the store.
type App struct {
	Config    *Config
	Logger    zerolog.Logger
	Generator Generator
	Prompt    *prompt.Builder
	Store     stores.ExchangeStore
	Retention *stores.Retention
	Server    *server.Server
}

// NewGenerator returns the backend selected by cfg.Provider.
func NewGenerator(cfg *Config, logger zerolog.Logger) (Generator, error) {
	switch cfg.Provider {
	case ProviderGenAI, "":
		return &googleai.GenAI_Model{
			Model:   cfg.ModelName,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.GeminiBaseURL,
			Logger:  logger.With().Str("component", "genai").Logger(),
		}, nil
	case ProviderGeminiREST:
		return &gemini.Gemini_Model{
			Model:   cfg.ModelName,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.GeminiBaseURL,
			Logger:  logger.With().Str("component", "gemini").Logger(),
		}, nil
	default:
		return nil, errors.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewApp builds the generator, prompt builder, store and HTTP server.
func NewApp(cfg *Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	generator, err := NewGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	builder, err := prompt.NewBuilder(cfg.Instruction, models.Role(cfg.InstructionRole))
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("instruction_role", string(builder.Role)).
		Bool("system_instruction", builder.AsSystem()).
		Str("provider", cfg.Provider).
		Str("model", cfg.ModelName).
		Msg("relay configured")
	if cfg.APIKey == "" {
		logger.Warn().Msg("no API key configured; generation calls will fail")
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Generator: generator,
		Prompt:    builder,
	}

	storeCfg := cfg.Store.StoreConfig
	store, err := stores.NewStore(&storeCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open transcript store")
	}
	if store != nil {
		app.Store = store
		maxAge := time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
		if maxAge > 0 {
			app.Retention, err = stores.NewRetention(store, cfg.Store.RetentionSchedule, maxAge,
				logger.With().Str("component", "retention").Logger())
			if err != nil {
				store.Close()
				return nil, err
			}
		}
		logger.Info().Str("store", storeCfg.Type).Msg("transcript recording enabled")
	}

	app.Server, err = server.New(generator, builder, app.SessionOptions(), server.Settings{
		RelayPath:      cfg.RelayPath,
		StreamProtocol: cfg.StreamProtocol,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// SessionOptions returns the settings shared by every relay session.
func (a *App) SessionOptions() sessions.Options {
	return sessions.Options{
		Model:       a.Config.ModelName,
		Temperature: a.Config.Temperature,
		Store:       a.Store,
		Logger:      a.Logger,
	}
}

// NewSession creates a relay session for one request.
func (a *App) NewSession() *RelaySession {
	return sessions.NewRelaySession(a.Generator, a.Prompt, a.SessionOptions())
}

func (a *App) Close() error {
	if a.Retention != nil {
		a.Retention.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
