package minetchat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeys(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
}

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, "gemini-2.0-flash", c.ModelName)
	assert.InDelta(t, 0.7, c.Temperature, 1e-9)
	assert.Equal(t, "user", c.InstructionRole)
	assert.Equal(t, server.ProtocolData, c.StreamProtocol)
	assert.Equal(t, "/api/gemini", c.RelayPath)
	assert.Equal(t, "none", c.Store.Type)
	assert.Equal(t, "@daily", c.Store.RetentionSchedule)
	assert.NoError(t, c.Validate())
}

func TestConfig_Builders(t *testing.T) {
	c := NewConfig().
		WithModelName("gemini-pro").
		WithProvider(ProviderGeminiREST).
		WithAPIKey("k").
		WithInstructionRole(models.RoleSystem).
		WithStreamProtocol(server.ProtocolSSE).
		WithSQLiteStore("chat.sqlite").
		WithRetention("@hourly", 7)

	assert.Equal(t, "gemini-pro", c.ModelName)
	assert.Equal(t, ProviderGeminiREST, c.Provider)
	assert.Equal(t, "system", c.InstructionRole)
	assert.Equal(t, "sqlite", c.Store.Type)
	assert.Equal(t, "chat.sqlite", c.Store.Connection)
	assert.Equal(t, 7, c.Store.RetentionDays)
	assert.NoError(t, c.Validate())

	c.WithPostgresStore("localhost", "u", "p", "minet", 5432)
	assert.Equal(t, "postgres", c.Store.Type)
	assert.Contains(t, c.Store.Connection, "dbname=minet")
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(c *Config){
		"provider":    func(c *Config) { c.Provider = "openai" },
		"model":       func(c *Config) { c.ModelName = "" },
		"temperature": func(c *Config) { c.Temperature = 3 },
		"role":        func(c *Config) { c.InstructionRole = "robot" },
		"assistant":   func(c *Config) { c.InstructionRole = "assistant" },
		"protocol":    func(c *Config) { c.StreamProtocol = "websocket" },
		"log level":   func(c *Config) { c.LogLevel = "loud" },
		"store type":  func(c *Config) { c.Store.Type = "redis" },
		"store conn":  func(c *Config) { c.Store.Type = "sqlite" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	clearKeys(t)
	assert.Empty(t, APIKeyFromEnv())

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	assert.Equal(t, "gemini-key", APIKeyFromEnv())

	t.Setenv("GOOGLE_API_KEY", "google-key")
	assert.Equal(t, "google-key", APIKeyFromEnv())
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	clearKeys(t)
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, NewConfig().ModelName, c.ModelName)
	assert.Equal(t, "none", c.Store.Type)
	assert.Empty(t, c.APIKey)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	clearKeys(t)
	t.Setenv("GOOGLE_API_KEY", "from-env")
	t.Setenv("MINETCHAT_MODEL", "gemini-env")

	path := filepath.Join(t.TempDir(), "minetchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: gemini-file
instruction_role: system
stream_protocol: sse
store:
  type: sqlite
  connection: transcripts.sqlite
  retention_days: 7
`), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-env", c.ModelName)
	assert.Equal(t, "system", c.InstructionRole)
	assert.Equal(t, server.ProtocolSSE, c.StreamProtocol)
	assert.Equal(t, "sqlite", c.Store.Type)
	assert.Equal(t, "transcripts.sqlite", c.Store.Connection)
	assert.Equal(t, 7, c.Store.RetentionDays)
	assert.Equal(t, "@daily", c.Store.RetentionSchedule)
	assert.Equal(t, "from-env", c.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("MINETCHAT_STREAM_PROTOCOL", "carrier-pigeon")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("warn", "json", &buf)
	require.NoError(t, err)
	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"test"`)

	_, err = NewLogger("loud", "json", &buf)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", &buf)
	assert.Error(t, err)

	logger, err = NewLogger("", "auto", &buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
