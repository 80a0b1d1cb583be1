package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	CLI       CLIConfig       `koanf:"cli"`
	Journal   JournalConfig   `koanf:"journal"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port int `koanf:"port"`

	// AuthToken enables Bearer auth on the API when non-empty.
	// The bridge binds locally by default, so auth is optional.
	AuthToken string `koanf:"auth_token"`
}

type CLIConfig struct {
	// Path is the external tool's binary name or absolute path.
	// A bare name is resolved via PATH; the platform suffix is applied
	// automatically.
	Path string `koanf:"path"`

	// DefaultTimeoutMillis bounds a session when the request omits a
	// timeout. MaxTimeoutMillis caps whatever the request asks for.
	DefaultTimeoutMillis int `koanf:"default_timeout_ms"`
	MaxTimeoutMillis     int `koanf:"max_timeout_ms"`

	// ProbeTimeoutMillis bounds the availability probe.
	ProbeTimeoutMillis int `koanf:"probe_timeout_ms"`

	// AllowedTools is the default capability allowlist applied when a
	// request does not name its own.
	AllowedTools []string `koanf:"allowed_tools"`
}

type JournalConfig struct {
	// Path is the SQLite database file; empty disables journaling.
	Path string `koanf:"path"`

	// RetentionDays prunes older entries at startup. Zero keeps everything.
	RetentionDays int `koanf:"retention_days"`
}

type RateLimitConfig struct {
	Enabled           bool `koanf:"enabled"`
	SessionsPerMinute int  `koanf:"sessions_per_minute"`
}

type TracingConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultTimeout returns the configured default session timeout.
func (c CLIConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMillis) * time.Millisecond
}

// MaxTimeout returns the configured session timeout ceiling.
func (c CLIConfig) MaxTimeout() time.Duration {
	return time.Duration(c.MaxTimeoutMillis) * time.Millisecond
}

// ProbeTimeout returns the configured probe deadline.
func (c CLIConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMillis) * time.Millisecond
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8573,
		},
		CLI: CLIConfig{
			Path:                 "claude",
			DefaultTimeoutMillis: 30000,
			MaxTimeoutMillis:     600000,
			ProbeTimeoutMillis:   5000,
		},
		Journal: JournalConfig{
			Path:          "clibridge.db",
			RetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			SessionsPerMinute: 20,
		},
		Tracing: TracingConfig{
			SamplingRate: 0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from YAML file + environment variables.
// Loading order: defaults → YAML file → env vars (later overrides earlier).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	cfg := Defaults()

	// Load YAML file (optional, may not exist)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			// Only fail if the file was explicitly specified and can't be read
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	} else {
		// Try default path, ignore if not found
		_ = k.Load(file.Provider("clibridge.yaml"), yaml.Parser())
	}

	// Load environment variables.
	// CLIBRIDGE_CLI__DEFAULT_TIMEOUT_MS → cli.default_timeout_ms
	// Double underscore (__) separates nesting levels; single underscores
	// within a level are preserved.
	err := k.Load(env.Provider("CLIBRIDGE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CLIBRIDGE_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.CLI.Path == "" {
		return fmt.Errorf("config: cli.path is required (set CLIBRIDGE_CLI__PATH)")
	}
	if cfg.CLI.DefaultTimeoutMillis <= 0 {
		return fmt.Errorf("config: cli.default_timeout_ms must be positive")
	}
	if cfg.CLI.MaxTimeoutMillis < cfg.CLI.DefaultTimeoutMillis {
		return fmt.Errorf("config: cli.max_timeout_ms must be >= cli.default_timeout_ms")
	}
	if cfg.CLI.ProbeTimeoutMillis <= 0 {
		return fmt.Errorf("config: cli.probe_timeout_ms must be positive")
	}
	return nil
}
