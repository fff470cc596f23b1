package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Values are layered by viper: defaults, then the user config file, then
// environment variables, then command-line flags.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	Debug      DebugConfig      `mapstructure:"debug"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Generation GenerationConfig `mapstructure:"generation"`
	Subjects   SubjectsConfig   `mapstructure:"subjects"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`

	// AdminToken guards the admission reset endpoint. Empty disables it.
	AdminToken string `mapstructure:"admin_token"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver" validate:"omitempty,oneof=libsql"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
//
// Profile selects the gofulmen logging profile: SIMPLE for CLI commands,
// STRUCTURED for the service.
type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Profile string `mapstructure:"profile" validate:"omitempty,oneof=structured simple"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`

	// Backend selects the generation metrics sink: telemetry or prometheus.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=telemetry prometheus none"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// ProviderConfig configures the image generation provider.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RateLimitConfig holds the shared admission budgets. Zero disables a dimension.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute" validate:"gte=0"`
	PerDay    int `mapstructure:"per_day" validate:"gte=0"`
}

// RetryConfig configures provider call retries.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	MaxDelay       time.Duration `mapstructure:"max_delay" validate:"gte=0"`
}

// GenerationConfig configures the orchestrator.
type GenerationConfig struct {
	Workers      int    `mapstructure:"workers" validate:"gte=1,lte=256"`
	StrictQuorum bool   `mapstructure:"strict_quorum"`
	PromptsDir   string `mapstructure:"prompts_dir"`

	// Years and Style are passed to prompt templates.
	Years string `mapstructure:"years"`
	Style string `mapstructure:"style"`
}

// SubjectsConfig locates subject images.
type SubjectsConfig struct {
	Root         string `mapstructure:"root"`
	MaxDimension int    `mapstructure:"max_dimension" validate:"gte=0"`
}

// ArtifactsConfig selects where generated artifacts are persisted.
type ArtifactsConfig struct {
	Sink          string `mapstructure:"sink" validate:"oneof=store dir"`
	Dir           string `mapstructure:"dir" validate:"required_if=Sink dir"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
}

// PromptVars returns the template variables configured for prompt rendering.
func (g GenerationConfig) PromptVars() map[string]string {
	vars := map[string]string{}
	if g.Years != "" {
		vars["years"] = g.Years
	}
	if g.Style != "" {
		vars["style"] = g.Style
	}
	return vars
}
