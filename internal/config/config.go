// Package config loads the console configuration from files, environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/medscan-console/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. MEDSCAN_API_BASE_URL
const EnvPrefix = "MEDSCAN"

// Manager loads and validates configuration using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// Option customizes a Manager before the first load
type Option func(*Manager)

// WithConfigFile reads configuration from an explicit file instead of the search paths
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.configFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{v: viper.New()}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("medscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".medscan"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars are enough
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.resolvePaths(cfg)

	m.config = cfg
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v
	home, _ := os.UserHomeDir()

	v.SetDefault("environment", "development")
	v.SetDefault("data_dir", filepath.Join(home, ".medscan"))

	// Backend gateway
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.circuit_breaker.max_requests", 1)
	v.SetDefault("api.circuit_breaker.interval", "60s")
	v.SetDefault("api.circuit_breaker.timeout", "30s")
	v.SetDefault("api.circuit_breaker.failure_threshold", 5)

	// Session persistence
	v.SetDefault("session.backend", "file")
	v.SetDefault("session.path", "")
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("session.key", "auth-storage")
	v.SetDefault("session.watch", true)

	// Screens
	v.SetDefault("upload.max_size_mb", 50)
	v.SetDefault("upload.preview_max_px", 512)
	v.SetDefault("analysis.history_limit", 10)
	v.SetDefault("analysis.enable_xai", true)
	v.SetDefault("reports.history_limit", 20)
	v.SetDefault("dashboard.recent_limit", 5)
	v.SetDefault("richtext.cache_size", 128)
	v.SetDefault("richtext.width", 100)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "file")
	v.SetDefault("logging.filename", "")

	// Development stub backend
	v.SetDefault("stub.host", "127.0.0.1")
	v.SetDefault("stub.port", 8000)
}

// resolvePaths fills in paths that depend on the data directory
func (m *Manager) resolvePaths(cfg *domain.Config) {
	if cfg.Session.Path == "" {
		switch cfg.Session.Backend {
		case "sqlite":
			cfg.Session.Path = filepath.Join(cfg.DataDir, "session.db")
		default:
			cfg.Session.Path = filepath.Join(cfg.DataDir, "session.json")
		}
	}
	if cfg.Logging.Filename == "" {
		cfg.Logging.Filename = filepath.Join(cfg.DataDir, "medscan.log")
	}
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetAPIConfig returns the backend gateway configuration
func (m *Manager) GetAPIConfig() *domain.APIConfig {
	return &m.config.API
}

// GetSessionConfig returns the session persistence configuration
func (m *Manager) GetSessionConfig() *domain.SessionConfig {
	return &m.config.Session
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Set overrides a single key and reloads the typed configuration.
// Used by the CLI to apply flag values on top of files and env.
func (m *Manager) Set(key string, value any) error {
	m.v.Set(key, value)
	cfg := &domain.Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.resolvePaths(cfg)
	m.config = cfg
	return nil
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	cfg := m.config

	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", cfg.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported API base URL scheme: %s", u.Scheme)
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if cfg.API.RateLimit <= 0 {
		return fmt.Errorf("API rate limit must be positive: %d", cfg.API.RateLimit)
	}

	switch cfg.Session.Backend {
	case "file", "sqlite", "memory":
	case "redis":
		if cfg.Session.RedisURL == "" {
			return fmt.Errorf("session redis URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s", cfg.Session.Backend)
	}
	if cfg.Session.Key == "" {
		return fmt.Errorf("session key is required")
	}

	if cfg.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("upload max size must be positive: %d", cfg.Upload.MaxSizeMB)
	}
	if cfg.RichText.CacheSize <= 0 {
		return fmt.Errorf("richtext cache size must be positive: %d", cfg.RichText.CacheSize)
	}

	if cfg.Stub.Port <= 0 || cfg.Stub.Port > 65535 {
		return fmt.Errorf("invalid stub port: %d", cfg.Stub.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (m *Manager) EnsureDataDir() error {
	return os.MkdirAll(m.config.DataDir, 0o700)
}
