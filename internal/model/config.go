package model

import (
	"strings"
	"time"
)

// Config is the complete PaperTrail client configuration
type Config struct {
	API         APIConfig         `yaml:"api" mapstructure:"api"`
	Suggest     SuggestConfig     `yaml:"suggest" mapstructure:"suggest"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// APIConfig configures the backend client
type APIConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Version    string        `yaml:"version" mapstructure:"version"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"` // Non-streaming calls only
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit  float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	Burst      int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// SuggestConfig selects and tunes the citation suggestion provider
type SuggestConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // backend, openai, anthropic
	Model     string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int           `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheDir  string        `yaml:"cache_dir,omitempty" mapstructure:"cache_dir"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	VerifyWorkers int `yaml:"verify_workers" mapstructure:"verify_workers"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// MetricsConfig configures the prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"` // Empty disables the endpoint
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000",
			Version:   "/api/v1",
			Timeout:   2 * time.Minute,
			UserAgent: "PaperTrail/0.1 (+https://github.com/ppiankov/papertrail)",
			RateLimit: 5,
			Burst:     5,
		},
		Suggest: SuggestConfig{
			Provider:  "backend",
			Timeout:   30,
			MaxTokens: 800,
			CacheTTL:  time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			VerifyWorkers: 4,
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Validate checks the parts of the configuration the client cannot run without
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return Missing("api.base_url")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return &ValidationError{Field: "api.base_url", Reason: "must start with http:// or https://"}
	}
	if c.Concurrency.VerifyWorkers < 0 {
		return &ValidationError{Field: "concurrency.verify_workers", Reason: "must not be negative"}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return &ValidationError{Field: "log.format", Reason: "must be text or json"}
	}
	return nil
}
