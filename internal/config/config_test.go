package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "download:\n  dir: /tmp/downloads\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/downloads", cfg.Download.Dir)
	assert.Equal(t, "downpour", cfg.Download.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Download.GetRequestTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Download.GetProgressInterval())
	assert.Equal(t, 3*time.Second, cfg.Download.GetRateWindow())
	assert.Equal(t, 64*1024, cfg.Download.GetBufferSize())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.BindAddr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.GetReadTimeout())
	assert.Equal(t, 60*time.Second, cfg.HTTP.GetIdleTimeout())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Database.Path)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfigFile(t, `
download:
  dir: /data/dl
  user_agent: downpour-test
  request_timeout: 10s
  progress_interval: 250ms
  rate_window: 5s
  buffer_size_kb: 128
http:
  bind_addr: 127.0.0.1:9090
logging:
  level: debug
  format: text
database:
  path: /data/dl/state.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/dl", cfg.Download.Dir)
	assert.Equal(t, "downpour-test", cfg.Download.UserAgent)
	assert.Equal(t, 10*time.Second, cfg.Download.GetRequestTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Download.GetProgressInterval())
	assert.Equal(t, 5*time.Second, cfg.Download.GetRateWindow())
	assert.Equal(t, 128*1024, cfg.Download.GetBufferSize())
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.BindAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/data/dl/state.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Download: DownloadConfig{
				Dir:              "/tmp/downloads",
				RequestTimeout:   "30s",
				ProgressInterval: "500ms",
				RateWindow:       "3s",
				BufferSizeKB:     64,
			},
			HTTP:    HTTPConfig{BindAddr: "0.0.0.0:8080"},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing dir", func(c *Config) { c.Download.Dir = "" }, "download.dir"},
		{"zero buffer", func(c *Config) { c.Download.BufferSizeKB = 0 }, "buffer_size_kb"},
		{"bad timeout", func(c *Config) { c.Download.RequestTimeout = "soon" }, "request_timeout"},
		{"bad interval", func(c *Config) { c.Download.ProgressInterval = "often" }, "progress_interval"},
		{"bad window", func(c *Config) { c.Download.RateWindow = "wide" }, "rate_window"},
		{"missing bind addr", func(c *Config) { c.HTTP.BindAddr = "" }, "bind_addr"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
