// Package config provides centralized configuration management for portraitforge.
//
// Layers, lowest precedence first: defaults (SetDefaults), the user config file
// discovered in the XDG app config directory, environment variables, and flags.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/portraitforge/portraitforge/internal/appid"
)

var (
	appConfig *Config
	configMu  sync.RWMutex

	validate = validator.New()
)

// EnvVarSpec maps a {PREFIX}{NAME} environment variable to a config path.
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Redacted is substituted for secrets when settings are displayed.
const Redacted = "[redacted]"

var secretKeys = [][]string{
	{"provider", "api_key"},
	{"store", "auth_token"},
	{"server", "admin_token"},
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.backend", "telemetry")

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)

	// Provider defaults
	v.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "gemini-2.5-flash-image")
	v.SetDefault("provider.timeout", "60s")

	// Admission defaults
	v.SetDefault("rate_limit.per_minute", 10)
	v.SetDefault("rate_limit.per_day", 500)

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "2s")
	v.SetDefault("retry.max_delay", "1m")

	// Generation defaults
	v.SetDefault("generation.workers", 8)
	v.SetDefault("generation.strict_quorum", false)
	v.SetDefault("generation.prompts_dir", "")
	v.SetDefault("generation.years", "")
	v.SetDefault("generation.style", "")

	v.SetDefault("subjects.root", ".")
	v.SetDefault("subjects.max_dimension", 1024)

	// Artifact defaults
	v.SetDefault("artifacts.sink", "store")
	v.SetDefault("artifacts.dir", DefaultArtifactsDir())
	v.SetDefault("artifacts.public_base_url", "")
}

// BindEnv enables automatic environment lookup on v for every key, using the
// app identity prefix (PORTRAITFORGE_SERVER_PORT maps to server.port).
func BindEnv(ctx context.Context, v *viper.Viper) {
	prefix := appid.EnvPrefix(ctx)
	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("provider.api_key", prefix+"PROVIDER_API_KEY", prefix+"API_KEY", "GEMINI_API_KEY")
}

// Load decodes and validates the effective configuration held by v.
//
// Short-form environment variables from getEnvSpecs (PORTRAITFORGE_PORT,
// PORTRAITFORGE_LOG_LEVEL, ...) are merged over the file layer first. A nil v
// loads defaults only.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs(appid.EnvPrefix(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if len(envOverrides) > 0 {
		if err := v.MergeConfigMap(envOverrides); err != nil {
			return nil, fmt.Errorf("failed to merge environment overrides: %w", err)
		}
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode unmarshals raw settings into a validated Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.Artifacts.Sink = strings.ToLower(strings.TrimSpace(cfg.Artifacts.Sink))
	cfg.Metrics.Backend = strings.ToLower(strings.TrimSpace(cfg.Metrics.Backend))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// RedactSettings returns a deep copy of settings with secrets replaced.
func RedactSettings(settings map[string]any) map[string]any {
	out := copySettings(settings)
	for _, path := range secretKeys {
		section, ok := out[path[0]].(map[string]any)
		if !ok {
			continue
		}
		if value, ok := section[path[1]]; ok && fmt.Sprint(value) != "" {
			section[path[1]] = Redacted
		}
	}
	return out
}

func copySettings(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		if nested, ok := value.(map[string]any); ok {
			out[key] = copySettings(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs returns the short-form environment variable mappings.
func getEnvSpecs(prefix string) []EnvVarSpec {
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "ADMIN_TOKEN", Path: []string{"server", "admin_token"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},
		{Name: prefix + "METRICS_BACKEND", Path: []string{"metrics", "backend"}, Type: EnvString},
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},

		// Provider config
		{Name: prefix + "MODEL", Path: []string{"provider", "model"}, Type: EnvString},
		{Name: prefix + "PROVIDER_TIMEOUT", Path: []string{"provider", "timeout"}, Type: EnvString},

		// Generation config
		{Name: prefix + "RATE_LIMIT_PER_MINUTE", Path: []string{"rate_limit", "per_minute"}, Type: EnvInt},
		{Name: prefix + "RATE_LIMIT_PER_DAY", Path: []string{"rate_limit", "per_day"}, Type: EnvInt},
		{Name: prefix + "MAX_ATTEMPTS", Path: []string{"retry", "max_attempts"}, Type: EnvInt},
		{Name: prefix + "WORKERS", Path: []string{"generation", "workers"}, Type: EnvInt},
		{Name: prefix + "STRICT_QUORUM", Path: []string{"generation", "strict_quorum"}, Type: EnvBool},
		{Name: prefix + "PROMPTS_DIR", Path: []string{"generation", "prompts_dir"}, Type: EnvString},
		{Name: prefix + "SUBJECTS_ROOT", Path: []string{"subjects", "root"}, Type: EnvString},
		{Name: prefix + "ARTIFACTS_SINK", Path: []string{"artifacts", "sink"}, Type: EnvString},
		{Name: prefix + "ARTIFACTS_DIR", Path: []string{"artifacts", "dir"}, Type: EnvString},
		{Name: prefix + "PUBLIC_BASE_URL", Path: []string{"artifacts", "public_base_url"}, Type: EnvString},
	}
}

const appName = "portraitforge"

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appName + ".db"
	}
	return filepath.Join(dataDir, appName+".db")
}

// DefaultArtifactsDir returns the directory used by the filesystem artifact sink.
func DefaultArtifactsDir() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./artifacts"
	}
	return filepath.Join(dataDir, "artifacts")
}

// UserConfigPaths returns candidate user config files in discovery order.
func UserConfigPaths() []string {
	return gfconfig.GetAppConfigPaths(appName)
}
