package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Vapi voice-session API configuration.
	// The public key initializes client-side sessions; if it is unset the
	// start action is disabled and the controller surfaces a visible warning.
	// The secret key is server-only and never reaches a client.
	VapiPublicKey   string `envconfig:"VAPI_PUBLIC_KEY" default:""`
	VapiSecretKey   string `envconfig:"VAPI_SECRET_KEY" required:"true"`
	VapiAPIURL      string `envconfig:"VAPI_API_URL" default:"https://api.vapi.ai"`
	VapiRealtimeURL string `envconfig:"VAPI_REALTIME_URL" default:"wss://realtime.vapi.ai/session"`

	// OpenAI completion API configuration (server-only)
	OpenAIAPIKey       string  `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIAPIURL       string  `envconfig:"OPENAI_API_URL" default:"https://api.openai.com/v1"`
	ScoringModel       string  `envconfig:"SCORING_MODEL" default:"gpt-4o"`
	ScoringTemperature float64 `envconfig:"SCORING_TEMPERATURE" default:"0.2"` // deterministic-leaning

	// Voice session dial configuration
	DialMaxAttempts    int `envconfig:"DIAL_MAX_ATTEMPTS" default:"3"`
	DialInitialBackoff int `envconfig:"DIAL_INITIAL_BACKOFF" default:"250"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.VapiSecretKey == "" {
		return fmt.Errorf("VAPI_SECRET_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
