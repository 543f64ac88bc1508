package minetchat

import (
	"os"
	"strings"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/server"
	"github.com/Desarso/minetchat/stores"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Generation backends.
const (
	ProviderGenAI      = "genai"
	ProviderGeminiREST = "gemini-rest"
)

// EnvPrefix prefixes every environment override, e.g. MINETCHAT_STORE_TYPE.
const EnvPrefix = "MINETCHAT"

// Config holds everything needed to run the relay and its clients.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	Provider        string        `mapstructure:"provider"`
	ModelName       string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	APIKey          string        `mapstructure:"api_key"`
	GeminiBaseURL   string        `mapstructure:"gemini_base_url"`
	InstructionRole string        `mapstructure:"instruction_role"`
	Instruction     string        `mapstructure:"instruction"`
	StreamProtocol  string        `mapstructure:"stream_protocol"`
	RelayPath       string        `mapstructure:"relay_path"`
	TerminalStyle   string        `mapstructure:"terminal_style"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	Store           StoreSettings `mapstructure:"store"`
}

// StoreSettings configures optional transcript recording.
type StoreSettings struct {
	stores.StoreConfig `mapstructure:",squash"`
	RetentionSchedule  string `mapstructure:"retention_schedule"`
	RetentionDays      int    `mapstructure:"retention_days"`
}

// NewConfig creates a configuration with default values
func NewConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Provider:        ProviderGenAI,
		ModelName:       "gemini-2.0-flash",
		Temperature:     0.7,
		InstructionRole: string(models.RoleUser),
		StreamProtocol:  server.ProtocolData,
		RelayPath:       server.DefaultRelayPath,
		TerminalStyle:   "dark",
		LogLevel:        "info",
		LogFormat:       "auto",
		Store: StoreSettings{
			StoreConfig:       stores.StoreConfig{Type: "none", Options: map[string]string{}},
			RetentionSchedule: "@daily",
			RetentionDays:     30,
		},
	}
}

// WithModelName sets the generation model id
func (c *Config) WithModelName(modelName string) *Config {
	c.ModelName = modelName
	return c
}

// WithProvider selects the generation backend
func (c *Config) WithProvider(provider string) *Config {
	c.Provider = provider
	return c
}

// WithAPIKey sets the generation API key
func (c *Config) WithAPIKey(key string) *Config {
	c.APIKey = key
	return c
}

// WithInstructionRole sets the role the fixed instruction is sent with
func (c *Config) WithInstructionRole(role models.Role) *Config {
	c.InstructionRole = string(role)
	return c
}

// WithStreamProtocol selects the response format of the relay endpoint
func (c *Config) WithStreamProtocol(protocol string) *Config {
	c.StreamProtocol = protocol
	return c
}

// WithSQLiteStore records transcripts in a SQLite database at dbPath
func (c *Config) WithSQLiteStore(dbPath string) *Config {
	c.Store.Type = "sqlite"
	c.Store.Connection = dbPath
	return c
}

// WithPostgresStore records transcripts in PostgreSQL
func (c *Config) WithPostgresStore(host, user, password, dbname string, port int) *Config {
	c.Store.Type = "postgres"
	c.Store.Connection = stores.PostgresDSN(host, user, password, dbname, port)
	return c
}

// WithRetention sets the purge schedule and the maximum transcript age in days
func (c *Config) WithRetention(schedule string, days int) *Config {
	c.Store.RetentionSchedule = schedule
	c.Store.RetentionDays = days
	return c
}

// Validate checks the values that would otherwise only fail at request time.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGenAI, ProviderGeminiREST:
	default:
		return errors.Errorf("unknown provider %q", c.Provider)
	}
	if c.ModelName == "" {
		return errors.New("model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	role, err := models.ParseRole(c.InstructionRole)
	if err != nil {
		return errors.Wrap(err, "instruction_role")
	}
	if role == models.RoleAssistant {
		return errors.Wrap(models.ErrInvalidRole, "instruction_role must be user or system")
	}
	switch c.StreamProtocol {
	case server.ProtocolData, server.ProtocolSSE:
	default:
		return errors.Errorf("unknown stream protocol %q", c.StreamProtocol)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(err, "log_level")
		}
	}
	switch c.Store.Type {
	case "", "none":
	case "sqlite", "postgres":
		if c.Store.Connection == "" {
			return errors.Errorf("store.connection is required for %s", c.Store.Type)
		}
	default:
		return errors.Errorf("unsupported store type: %s", c.Store.Type)
	}
	return nil
}

// APIKeyFromEnv reads GOOGLE_API_KEY, falling back to GEMINI_API_KEY.
func APIKeyFromEnv() string {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}

// LoadConfig reads an optional .env file, an optional YAML file at path and
// MINETCHAT_* environment overrides, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, NewConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("addr", c.Addr)
	v.SetDefault("provider", c.Provider)
	v.SetDefault("model", c.ModelName)
	v.SetDefault("temperature", c.Temperature)
	v.SetDefault("api_key", c.APIKey)
	v.SetDefault("gemini_base_url", c.GeminiBaseURL)
	v.SetDefault("instruction_role", c.InstructionRole)
	v.SetDefault("instruction", c.Instruction)
	v.SetDefault("stream_protocol", c.StreamProtocol)
	v.SetDefault("relay_path", c.RelayPath)
	v.SetDefault("terminal_style", c.TerminalStyle)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("store.type", c.Store.Type)
	v.SetDefault("store.connection", c.Store.Connection)
	v.SetDefault("store.options", c.Store.Options)
	v.SetDefault("store.retention_schedule", c.Store.RetentionSchedule)
	v.SetDefault("store.retention_days", c.Store.RetentionDays)
}
