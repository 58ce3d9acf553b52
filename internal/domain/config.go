package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	DataDir     string          `mapstructure:"data_dir"`
	API         APIConfig       `mapstructure:"api"`
	Session     SessionConfig   `mapstructure:"session"`
	Upload      UploadConfig    `mapstructure:"upload"`
	Analysis    AnalysisConfig  `mapstructure:"analysis"`
	Reports     ReportsConfig   `mapstructure:"reports"`
	Dashboard   DashboardConfig `mapstructure:"dashboard"`
	RichText    RichTextConfig  `mapstructure:"richtext"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Stub        StubConfig      `mapstructure:"stub"`
}

// APIConfig represents the backend gateway configuration
type APIConfig struct {
	BaseURL        string               `mapstructure:"base_url"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	RateLimit      int                  `mapstructure:"rate_limit"` // requests per second
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// SessionConfig selects where the session envelope is persisted
type SessionConfig struct {
	Backend  string `mapstructure:"backend"` // file, sqlite, redis, memory
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	Key      string `mapstructure:"key"`
	Watch    bool   `mapstructure:"watch"`
}

// UploadConfig represents upload flow limits
type UploadConfig struct {
	MaxSizeMB    int `mapstructure:"max_size_mb"`
	PreviewMaxPx int `mapstructure:"preview_max_px"`
}

// AnalysisConfig represents analysis screen settings
type AnalysisConfig struct {
	HistoryLimit int  `mapstructure:"history_limit"`
	EnableXAI    bool `mapstructure:"enable_xai"`
}

// ReportsConfig represents report screen settings
type ReportsConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// DashboardConfig represents dashboard settings
type DashboardConfig struct {
	RecentLimit int `mapstructure:"recent_limit"`
}

// RichTextConfig represents rich text rendering settings
type RichTextConfig struct {
	CacheSize int `mapstructure:"cache_size"`
	Width     int `mapstructure:"width"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"` // stdout, stderr, file
	Filename string `mapstructure:"filename"`
}

// StubConfig represents the development stub backend configuration
type StubConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}
