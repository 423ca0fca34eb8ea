package config

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidListenAddr indicates the listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidRateLimit indicates the rate limit settings are out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidSimilarityThreshold indicates the threshold is out of range.
	ErrInvalidSimilarityThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMaxResults indicates the result cap is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// MaxResultsCap bounds max_results; larger values pull whole tables into
// the model context.
const MaxResultsCap = 50

// Validate checks configuration values. Returns sentinel errors usable
// with errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set the GEMINI_API_KEY environment variable", ErrMissingAPIKey)
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("%w: rate_limit_rps must be positive, got %v", ErrInvalidRateLimit, c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: rate_limit_burst must be at least 1, got %d", ErrInvalidRateLimit, c.RateLimitBurst)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Cosine similarity lives in [-1, 1]; a threshold of 1 filters everything.
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: must be in [-1, 1), got %v", ErrInvalidSimilarityThreshold, c.SimilarityThreshold)
	}

	if c.MaxResults < 1 || c.MaxResults > MaxResultsCap {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidMaxResults, MaxResultsCap, c.MaxResults)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Deprecated allow/prefer modes are excluded; both downgrade silently.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
