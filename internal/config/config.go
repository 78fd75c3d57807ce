// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables with the ASKAI_ prefix (runtime override)
//  2. Config file (askai.yaml in the working directory or /etc/askai)
//  3. Default values
//
// Error handling uses sentinel errors so callers can branch with errors.Is();
// wrap with context using fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingDatabaseURL indicates the PostgreSQL connection URL is not set.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPort indicates the HTTP port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidMaxIterations indicates the agent iteration cap is out of range.
	ErrInvalidMaxIterations = errors.New("invalid max iterations")

	// ErrInvalidTurnTimeout indicates the turn timeout is non-positive.
	ErrInvalidTurnTimeout = errors.New("invalid turn timeout")
)

// Default values applied when neither environment nor config file set a key.
const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultEmbedderModel = "gemini-embedding-001"
	DefaultHost          = "localhost"
	DefaultPort          = 8080
	DefaultMaxIterations = 10
	DefaultTurnTimeout   = 90 * time.Second
	DefaultRateBurst     = 20
	DefaultLanguage      = "th"
)

// Config holds all runtime configuration for the service.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string (postgres://...).
	DatabaseURL string `mapstructure:"database_url"`

	// GeminiAPIKey authenticates against the Google AI API.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	// Model is the planner/router/reflector model name.
	Model string `mapstructure:"model"`

	// EmbedderModel is the embedding model used for retrieval.
	EmbedderModel string `mapstructure:"embedder_model"`

	// RerankURL points at a TEI-style /rerank service. Empty disables reranking.
	RerankURL string `mapstructure:"rerank_url"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// MaxIterations caps agent loop iterations per turn.
	MaxIterations int `mapstructure:"max_iterations"`

	// TurnTimeout is the wall-clock budget for a single agent turn.
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`

	// MultiAgent enables expert routing before planning.
	MultiAgent bool `mapstructure:"multi_agent"`

	// AutoApproveTools are tool names executed without a human approval gate
	// regardless of user preferences. Read-only tools only.
	AutoApproveTools []string `mapstructure:"auto_approve_tools"`

	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, an optional config file, and
// ASKAI_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model", DefaultModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("max_iterations", DefaultMaxIterations)
	v.SetDefault("turn_timeout", DefaultTurnTimeout)
	v.SetDefault("multi_agent", true)
	v.SetDefault("auto_approve_tools", []string{"getSalesSummary", "getOrderStatusCounts"})
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", DefaultRateBurst)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetConfigName("askai")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/askai")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; env and defaults remain.
	}

	v.SetEnvPrefix("ASKAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration required to serve requests.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%w: set ASKAI_DATABASE_URL", ErrMissingDatabaseURL)
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set ASKAI_GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.Model) == "" {
		return ErrInvalidModelName
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.MaxIterations < 1 || c.MaxIterations > 100 {
		return fmt.Errorf("%w: %d (must be 1-100)", ErrInvalidMaxIterations, c.MaxIterations)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTurnTimeout, c.TurnTimeout)
	}
	return nil
}

// ValidateMigrate checks configuration required to run migrations.
func (c *Config) ValidateMigrate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%w: set ASKAI_DATABASE_URL", ErrMissingDatabaseURL)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
