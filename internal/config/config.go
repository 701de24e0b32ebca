package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Download DownloadConfig `mapstructure:"download"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// DownloadConfig contains download engine settings
type DownloadConfig struct {
	Dir              string `mapstructure:"dir"`
	UserAgent        string `mapstructure:"user_agent"`
	RequestTimeout   string `mapstructure:"request_timeout"`
	ProgressInterval string `mapstructure:"progress_interval"`
	RateWindow       string `mapstructure:"rate_window"`
	BufferSizeKB     int    `mapstructure:"buffer_size_kb"`
	MaxRateKBps      int    `mapstructure:"max_rate_kbps"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("download.dir", "/var/lib/downpour/downloads")
	viper.SetDefault("download.user_agent", "downpour")
	viper.SetDefault("download.request_timeout", "30s")
	viper.SetDefault("download.progress_interval", "500ms")
	viper.SetDefault("download.rate_window", "3s")
	viper.SetDefault("download.buffer_size_kb", 64)
	viper.SetDefault("download.max_rate_kbps", 0)
	viper.SetDefault("http.bind_addr", "0.0.0.0:8080")
	viper.SetDefault("http.read_timeout", "30s")
	viper.SetDefault("http.write_timeout", "30s")
	viper.SetDefault("http.idle_timeout", "60s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("database.path", "")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir is required")
	}
	if c.Download.BufferSizeKB <= 0 {
		return fmt.Errorf("download.buffer_size_kb must be positive")
	}
	if c.Download.MaxRateKBps < 0 {
		return fmt.Errorf("download.max_rate_kbps must not be negative")
	}
	if _, err := time.ParseDuration(c.Download.RequestTimeout); err != nil {
		return fmt.Errorf("invalid download.request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Download.ProgressInterval); err != nil {
		return fmt.Errorf("invalid download.progress_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Download.RateWindow); err != nil {
		return fmt.Errorf("invalid download.rate_window: %w", err)
	}

	if c.HTTP.BindAddr == "" {
		return fmt.Errorf("http.bind_addr is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetRequestTimeout returns the probe request timeout as time.Duration
func (c *DownloadConfig) GetRequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetProgressInterval returns the progress publication interval as time.Duration
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetRateWindow returns the rate estimation window as time.Duration
func (c *DownloadConfig) GetRateWindow() time.Duration {
	d, _ := time.ParseDuration(c.RateWindow)
	if d == 0 {
		return 3 * time.Second
	}
	return d
}

// GetBufferSize returns the transfer buffer size in bytes
func (c *DownloadConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 64 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetMaxBytesPerSecond returns the aggregate transfer rate cap in
// bytes per second; zero means unlimited
func (c *DownloadConfig) GetMaxBytesPerSecond() int64 {
	if c.MaxRateKBps <= 0 {
		return 0
	}
	return int64(c.MaxRateKBps) * 1024
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}
