package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"essay_reader/essay"
)

// Config holds everything the server and the CLI need.
type Config struct {
	ServerAddr string        `json:"server_addr,omitempty" toml:"server_addr"`
	LLM        LLMConfig     `json:"llm" toml:"llm"`
	Storage    StorageConfig `json:"storage" toml:"storage"`
	Auth       AuthConfig    `json:"auth" toml:"auth"`
	Catalog    essay.Catalog `json:"catalog" toml:"catalog"`
	Log        LogConfig     `json:"log" toml:"log"`
}

// LLMConfig 生成模块的模型配置。api_key 为空时从 api_key_env 指定的环境变量读取，
// api_key_env 也为空时按 provider 取默认变量名（见 keyEnvFor）。
type LLMConfig struct {
	Provider       string  `json:"provider,omitempty" toml:"provider"`
	Model          string  `json:"model,omitempty" toml:"model"`
	APIKey         string  `json:"api_key,omitempty" toml:"api_key"`
	APIKeyEnv      string  `json:"api_key_env,omitempty" toml:"api_key_env"`
	BaseURL        string  `json:"base_url,omitempty" toml:"base_url"`
	Temperature    float64 `json:"temperature,omitempty" toml:"temperature"`
	TopP           float64 `json:"top_p,omitempty" toml:"top_p"`
	MaxTokens      int64   `json:"max_tokens,omitempty" toml:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty" toml:"timeout_seconds"`
}

// StorageConfig selects the saved-essay backend.
type StorageConfig struct {
	Driver string `json:"driver,omitempty" toml:"driver"` // sqlite | postgres
	Path   string `json:"path,omitempty" toml:"path"`
	DSN    string `json:"dsn,omitempty" toml:"dsn"`
}

// AuthConfig carries the shared secret used to verify access tokens.
type AuthConfig struct {
	JWTSecret    string `json:"jwt_secret,omitempty" toml:"jwt_secret"`
	JWTSecretEnv string `json:"jwt_secret_env,omitempty" toml:"jwt_secret_env"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `json:"level,omitempty" toml:"level"`
	Format string `json:"format,omitempty" toml:"format"`
}

const defaultJWTSecretEnv = "SUPABASE_JWT_SECRET"

// keyEnvFor names the environment variable holding the key for provider.
// A key is only ever read for the provider it belongs to.
func keyEnvFor(provider string) string {
	switch provider {
	case "gemini":
		return "GOOGLE_GEMINI_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// Default returns a config usable without any file.
func Default() Config {
	return Config{
		ServerAddr: ":8080",
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0.8,
			TopP:           0.9,
			MaxTokens:      600,
			TimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "data/essays.db",
		},
		Auth:    AuthConfig{JWTSecretEnv: defaultJWTSecretEnv},
		Catalog: essay.DefaultCatalog(),
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads a JSON or TOML config from disk on top of Default().
// An empty path returns the defaults with environment overrides applied.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv fills secrets from the environment. Secrets set in the file win.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		envName := c.LLM.APIKeyEnv
		if envName == "" {
			envName = keyEnvFor(c.LLM.Provider)
		}
		if envName != "" {
			c.LLM.APIKey = strings.TrimSpace(os.Getenv(envName))
		}
	}
	if c.Auth.JWTSecret == "" {
		envName := c.Auth.JWTSecretEnv
		if envName == "" {
			envName = defaultJWTSecretEnv
		}
		c.Auth.JWTSecret = strings.TrimSpace(os.Getenv(envName))
	}
}

// Validate checks structural settings. A missing provider key is allowed here:
// the generation endpoint reports it per request instead.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "deepseek", "gemini", "mock":
	case "":
		return errors.New("llm.provider is required")
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Provider != "mock" && c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if (c.LLM.Provider == "deepseek" || c.LLM.Provider == "gemini") && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm provider %s requires base_url (OpenAI-compatible endpoint)", c.LLM.Provider)
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("storage driver %q not supported", c.Storage.Driver)
	}
	return nil
}
