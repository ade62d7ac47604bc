// Package config loads process configuration from the environment and the
// agent catalogue from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/hupe1980/stylemesh/logging"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// HTTP listen address, e.g. ":8080"
	Address         string        `env:"STYLEMESH_ADDRESS" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"STYLEMESH_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"STYLEMESH_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"STYLEMESH_LOG_FORMAT" envDefault:"json"`
	DBPath          string        `env:"STYLEMESH_DB_PATH" envDefault:"./data/stylemesh.db"`
	// ArtifactDir stores photos and generated images on disk; empty keeps them in memory.
	ArtifactDir string `env:"STYLEMESH_ARTIFACT_DIR" envDefault:"./data/artifacts"`
	// AgentsFile replaces the embedded agent catalogue when set.
	AgentsFile string `env:"STYLEMESH_AGENTS_FILE"`
	// CORSOrigins enables CORS for the listed origins ("*" for any).
	CORSOrigins []string `env:"STYLEMESH_CORS_ORIGINS" envSeparator:","`
	// MaxPhotoBytes bounds fetched and uploaded photos.
	MaxPhotoBytes int64 `env:"STYLEMESH_MAX_PHOTO_BYTES" envDefault:"10485760"`

	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	Orchestrator OrchestratorConfig `envPrefix:"STYLEMESH_ORCHESTRATOR_"`
	Visual       VisualConfig       `envPrefix:"STYLEMESH_VISUAL_"`
	Workflow     WorkflowConfig     `envPrefix:"STYLEMESH_WORKFLOW_"`
}

// OrchestratorConfig tunes retries and reply validation.
type OrchestratorConfig struct {
	MaxAttempts       int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	BackoffUnit       time.Duration `env:"BACKOFF_UNIT" envDefault:"1s"`
	MinResponseLength int           `env:"MIN_RESPONSE_LENGTH" envDefault:"10"`
	// Markers are separated by "|" since they may contain commas.
	RetryableMarkers []string `env:"RETRYABLE_MARKERS" envSeparator:"|"`
	RefusalMarkers   []string `env:"REFUSAL_MARKERS" envSeparator:"|"`
	MaxModelCalls    int      `env:"MAX_MODEL_CALLS" envDefault:"25"`
}

// VisualConfig configures outfit visualization.
type VisualConfig struct {
	Model       string `env:"MODEL" envDefault:"gemini-2.5-flash-image"`
	Parallelism int    `env:"PARALLELISM" envDefault:"3"`
	// Disabled skips visualization; workflows complete without images.
	Disabled bool `env:"DISABLED" envDefault:"false"`
}

// WorkflowConfig configures the analysis pipeline.
type WorkflowConfig struct {
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"5m"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("STYLEMESH_ADDRESS cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("STYLEMESH_DB_PATH cannot be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("STYLEMESH_LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("STYLEMESH_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.MaxPhotoBytes <= 0 {
		return fmt.Errorf("STYLEMESH_MAX_PHOTO_BYTES must be > 0")
	}
	if c.Orchestrator.MaxAttempts <= 0 {
		return fmt.Errorf("STYLEMESH_ORCHESTRATOR_MAX_ATTEMPTS must be > 0")
	}
	if c.Orchestrator.BackoffUnit < 0 {
		return fmt.Errorf("STYLEMESH_ORCHESTRATOR_BACKOFF_UNIT must not be negative")
	}
	if c.Visual.Parallelism <= 0 {
		return fmt.Errorf("STYLEMESH_VISUAL_PARALLELISM must be > 0")
	}
	if c.Workflow.Concurrency <= 0 {
		return fmt.Errorf("STYLEMESH_WORKFLOW_CONCURRENCY must be > 0")
	}
	return nil
}

// APIKey returns the credential configured for a model provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case ProviderGoogle:
		return c.GoogleAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() *logging.Config {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LogLevelInfo
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.LogFormat

	return cfg
}
