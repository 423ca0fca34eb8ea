package config

import (
	"errors"
	"testing"
)

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() on valid config: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestValidate_SentinelErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "missing api key",
			mutate: func(c *Config) { c.GeminiAPIKey = "" },
			want:   ErrMissingAPIKey,
		},
		{
			name:   "empty listen addr",
			mutate: func(c *Config) { c.ListenAddr = "" },
			want:   ErrInvalidListenAddr,
		},
		{
			name:   "zero rate limit",
			mutate: func(c *Config) { c.RateLimitRPS = 0 },
			want:   ErrInvalidRateLimit,
		},
		{
			name:   "zero burst",
			mutate: func(c *Config) { c.RateLimitBurst = 0 },
			want:   ErrInvalidRateLimit,
		},
		{
			name:   "empty embedder model",
			mutate: func(c *Config) { c.EmbedderModel = "" },
			want:   ErrInvalidEmbedderModel,
		},
		{
			name:   "threshold at one",
			mutate: func(c *Config) { c.SimilarityThreshold = 1 },
			want:   ErrInvalidSimilarityThreshold,
		},
		{
			name:   "threshold below minus one",
			mutate: func(c *Config) { c.SimilarityThreshold = -1.5 },
			want:   ErrInvalidSimilarityThreshold,
		},
		{
			name:   "zero max results",
			mutate: func(c *Config) { c.MaxResults = 0 },
			want:   ErrInvalidMaxResults,
		},
		{
			name:   "oversized max results",
			mutate: func(c *Config) { c.MaxResults = MaxResultsCap + 1 },
			want:   ErrInvalidMaxResults,
		},
		{
			name:   "empty postgres host",
			mutate: func(c *Config) { c.PostgresHost = "" },
			want:   ErrInvalidPostgresHost,
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.PostgresPort = 70000 },
			want:   ErrInvalidPostgresPort,
		},
		{
			name:   "empty db name",
			mutate: func(c *Config) { c.PostgresDBName = "" },
			want:   ErrInvalidPostgresDBName,
		},
		{
			name:   "deprecated ssl mode",
			mutate: func(c *Config) { c.PostgresSSLMode = "prefer" },
			want:   ErrInvalidPostgresSSLMode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
