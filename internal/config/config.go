// Package config loads application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables
//  2. Config file (~/.agentkb/config.yaml or ./config.yaml)
//  3. Defaults
//
// Sensitive fields (database password, API key) are masked in MarshalJSON
// and String, so the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/agentkb/agentkb/internal/retrieval"
)

// DefaultEmbedderModel is the Gemini embedding model used for both
// ingestion and queries. Using the same model for both is required for
// meaningful cosine similarity.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
// Sensitive fields are masked in MarshalJSON; when adding one, update it.
type Config struct {
	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Rate limiting, requests per second per client with burst allowance.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Gemini
	GeminiAPIKey  string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval tuning
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	MaxResults          int     `mapstructure:"max_results" json:"max_results"`

	// PostgreSQL (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load loads configuration with priority env > file > defaults and
// validates it before returning.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".agentkb")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")

	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 20)

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("similarity_threshold", retrieval.DefaultSimilarityThreshold)
	v.SetDefault("max_results", retrieval.DefaultMaxResults)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "agentkb")
	v.SetDefault("postgres_password", "agentkb_dev_password")
	v.SetDefault("postgres_db_name", "agentkb")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded keys
// cannot fail to bind; a panic here is a bug, not a runtime condition.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("listen_addr", "AGENTKB_LISTEN_ADDR")
	mustBind("log_json", "AGENTKB_LOG_JSON")
	mustBind("log_level", "AGENTKB_LOG_LEVEL")
	mustBind("similarity_threshold", "AGENTKB_SIMILARITY_THRESHOLD")
	mustBind("max_results", "AGENTKB_MAX_RESULTS")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility. This guards against accidental logging, not compromised logs.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so printing a Config never leaks secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
