// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragchat/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Provider: Azure OpenAI endpoint, deployments, budget cap
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k, conversation retention, document limits
//   - Server: HTTP listen address
//
// Sensitive values (API key, database password) are never logged; MarshalJSON
// masks them explicitly. Validation is fail-fast with sentinel errors so
// callers can use errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Azure OpenAI API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingEndpoint indicates the Azure OpenAI endpoint is not set.
	ErrMissingEndpoint = errors.New("missing endpoint")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidBudget indicates the budget cap is not positive.
	ErrInvalidBudget = errors.New("invalid budget")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidRetention indicates the conversation retention count is invalid.
	ErrInvalidRetention = errors.New("invalid conversation retention")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is unknown.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultKeepLastTurns is the conversation retention count: after each
	// recorded turn, only the most recent N turns per user are kept.
	DefaultKeepLastTurns = 5

	// DefaultTopK is the number of fused context entries per question.
	DefaultTopK = 5

	// DefaultMaxDocuments is the per-user uploaded document cap.
	// -1 means unlimited.
	DefaultMaxDocuments = 5
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Azure OpenAI provider configuration
	Endpoint            string  `mapstructure:"endpoint" json:"endpoint"`
	APIKey              string  `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	APIVersion          string  `mapstructure:"api_version" json:"api_version"`
	ChatDeployment      string  `mapstructure:"chat_deployment" json:"chat_deployment"`
	EmbeddingDeployment string  `mapstructure:"embedding_deployment" json:"embedding_deployment"`
	Temperature         float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens           int     `mapstructure:"max_tokens" json:"max_tokens"`
	MaxBudget           float64 `mapstructure:"max_budget" json:"max_budget"`

	// Retrieval configuration
	TopK          int `mapstructure:"top_k" json:"top_k"`
	KeepLastTurns int `mapstructure:"keep_last_turns" json:"keep_last_turns"`
	MaxDocuments  int `mapstructure:"max_documents" json:"max_documents"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragchat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Provider defaults (deployments follow the Azure OpenAI console names)
	v.SetDefault("api_version", "2025-01-01-preview")
	v.SetDefault("chat_deployment", "gpt-4o-mini")
	v.SetDefault("embedding_deployment", "text-embedding-ada-002")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 500)
	v.SetDefault("max_budget", 1.0)

	// Retrieval defaults
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("keep_last_turns", DefaultKeepLastTurns)
	v.SetDefault("max_documents", DefaultMaxDocuments)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "ragchat")
	v.SetDefault("postgres_password", "ragchat_dev_password")
	v.SetDefault("postgres_db_name", "ragchat")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	v.SetDefault("listen_addr", "127.0.0.1:8000")
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment, never from the config file
// in deployed environments.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("endpoint", "AZURE_OPENAI_ENDPOINT")
	mustBind("api_key", "AZURE_OPENAI_API_KEY")
	mustBind("api_version", "AZURE_OPENAI_API_VERSION")
	mustBind("chat_deployment", "AZURE_OPENAI_CHAT_DEPLOYMENT")
	mustBind("embedding_deployment", "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	mustBind("max_budget", "AZURE_OPENAI_MAX_BUDGET")

	mustBind("listen_addr", "RAGCHAT_LISTEN_ADDR")
	mustBind("top_k", "RAGCHAT_TOP_K")
	mustBind("keep_last_turns", "RAGCHAT_KEEP_LAST_TURNS")
	mustBind("max_documents", "RAGCHAT_MAX_DOCUMENTS")

	// NOTE: DATABASE_URL is parsed separately in parseDatabaseURL because it
	// expands into multiple postgres_* fields.
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets show the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
