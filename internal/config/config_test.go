package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	clearEnvVars(t)
	dataDir := t.TempDir()
	t.Setenv("MEDSCAN_DATA_DIR", dataDir)

	m, err := NewManager()
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10, cfg.API.RateLimit)
	assert.Equal(t, uint32(5), cfg.API.CircuitBreaker.FailureThreshold)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, "auth-storage", cfg.Session.Key)
	assert.Equal(t, filepath.Join(dataDir, "session.json"), cfg.Session.Path)
	assert.Equal(t, 50, cfg.Upload.MaxSizeMB)
	assert.Equal(t, 10, cfg.Analysis.HistoryLimit)
	assert.Equal(t, 20, cfg.Reports.HistoryLimit)
	assert.Equal(t, 5, cfg.Dashboard.RecentLimit)
	assert.Equal(t, 128, cfg.RichText.CacheSize)
	assert.Equal(t, filepath.Join(dataDir, "medscan.log"), cfg.Logging.Filename)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("MEDSCAN_DATA_DIR", t.TempDir())
	t.Setenv("MEDSCAN_API_BASE_URL", "https://api.example.org")
	t.Setenv("MEDSCAN_API_TIMEOUT", "5s")
	t.Setenv("MEDSCAN_SESSION_BACKEND", "sqlite")
	t.Setenv("MEDSCAN_UPLOAD_MAX_SIZE_MB", "10")
	t.Setenv("MEDSCAN_LOGGING_LEVEL", "debug")
	t.Setenv("MEDSCAN_ENVIRONMENT", "production")

	m, err := NewManager()
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, "https://api.example.org", m.GetAPIConfig().BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "sqlite", m.GetSessionConfig().Backend)
	assert.Equal(t, filepath.Join(cfg.DataDir, "session.db"), cfg.Session.Path)
	assert.Equal(t, 10, cfg.Upload.MaxSizeMB)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, m.IsProduction())
}

func TestNewManager_ConfigFile(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "medscan.yaml")
	content := `
data_dir: ` + dir + `
api:
  base_url: http://backend.internal:9000
  rate_limit: 3
session:
  backend: redis
  redis_url: redis://cache:6379/2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := NewManager(WithConfigFile(path))
	require.NoError(t, err)
	cfg := m.GetConfig()

	assert.Equal(t, path, m.ConfigFileUsed())
	assert.Equal(t, "http://backend.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.API.RateLimit)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "redis://cache:6379/2", cfg.Session.RedisURL)
	assert.NoError(t, m.Validate())
}

func TestManager_Set(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("MEDSCAN_DATA_DIR", t.TempDir())

	m, err := NewManager()
	require.NoError(t, err)

	require.NoError(t, m.Set("api.base_url", "http://127.0.0.1:8123"))
	assert.Equal(t, "http://127.0.0.1:8123", m.GetConfig().API.BaseURL)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr string
	}{
		{"bad url", "api.base_url", "not a url", "invalid API base URL"},
		{"bad scheme", "api.base_url", "ftp://host", "unsupported API base URL scheme"},
		{"zero rate", "api.rate_limit", 0, "rate limit"},
		{"bad backend", "session.backend", "etcd", "invalid session backend"},
		{"empty key", "session.key", "", "session key is required"},
		{"zero upload", "upload.max_size_mb", 0, "upload max size"},
		{"bad level", "logging.level", "verbose", "invalid log level"},
		{"bad port", "stub.port", 70000, "invalid stub port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv("MEDSCAN_DATA_DIR", t.TempDir())

			m, err := NewManager()
			require.NoError(t, err)
			require.NoError(t, m.Set(tt.key, tt.value))

			err = m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManager_EnsureDataDir(t *testing.T) {
	clearEnvVars(t)
	dataDir := filepath.Join(t.TempDir(), "nested", "medscan")
	t.Setenv("MEDSCAN_DATA_DIR", dataDir)

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.EnsureDataDir())

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix+"_") {
			// t.Setenv restores the original value after the test
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}
