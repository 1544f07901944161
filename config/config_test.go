package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Len(t, cfg.Catalog.ReadingLevels, 5)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"server_addr": ":9090",
		"llm": {"provider": "openai", "model": "gpt-4o", "api_key": "from-file"},
		"storage": {"driver": "postgres", "dsn": "postgres://localhost/essays"}
	}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, 0.8, cfg.LLM.Temperature, "unset fields keep defaults")
	assert.Equal(t, "postgres", cfg.Storage.Driver)
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
server_addr = ":7000"

[llm]
provider = "mock"

[catalog]
subjects = ["Astronomy"]
reading_levels = ["Seasoned Expert"]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ServerAddr)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, []string{"Astronomy"}, cfg.Catalog.Subjects)
}

func TestLoadConfigReadsSecretsFromEnv(t *testing.T) {
	t.Setenv("MY_KEY", "env-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
	path := writeFile(t, "config.json", `{"llm": {"provider": "openai", "model": "m", "api_key_env": "MY_KEY"}}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "jwt-secret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "claude-ish"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Provider = "deepseek"
	assert.Error(t, cfg.Validate(), "deepseek needs base_url")

	cfg = Default()
	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Driver = "mongo"
	assert.Error(t, cfg.Validate())
}

func TestProviderKeyComesFromItsOwnEnv(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.APIKey, "a gemini key is never sent to openai")

	t.Setenv("OPENAI_API_KEY", "openai-key")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "openai-key", cfg.LLM.APIKey)

	path := writeFile(t, "config.toml", `
[llm]
provider = "gemini"
model = "gemini-2.0-flash"
base_url = "https://generativelanguage.googleapis.com/v1beta/openai/"
`)
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", cfg.LLM.APIKey)
}
