package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the marketplace REST API.
type APIConfig struct {
	// BaseURL is the API root, including any /api prefix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// PageSize is the snapshot size requested by the pollers.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// StorageConfig selects where dedup state is persisted.
type StorageConfig struct {
	// Backend is "sqlite" or "redis".
	Backend    string `mapstructure:"backend" yaml:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// PollingConfig holds the poller intervals.
type PollingConfig struct {
	BookingsIntervalSec int `mapstructure:"bookings_interval_sec" yaml:"bookings_interval_sec"`
	RatingsIntervalSec  int `mapstructure:"ratings_interval_sec" yaml:"ratings_interval_sec"`
}

// NotificationsConfig holds inbox lifecycle settings.
type NotificationsConfig struct {
	AutoExpireSec int `mapstructure:"auto_expire_sec" yaml:"auto_expire_sec"`
}

// CancellationConfig controls how cancellations are attributed when the
// API does not say who cancelled.
type CancellationConfig struct {
	AssumeCustomerWhenUnknown bool `mapstructure:"assume_customer_when_unknown" yaml:"assume_customer_when_unknown"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dev   bool   `mapstructure:"dev" yaml:"dev"`
}

// MetricsConfig holds the Prometheus endpoint address; empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Polling       PollingConfig       `mapstructure:"polling" yaml:"polling"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Cancellation  CancellationConfig  `mapstructure:"cancellation" yaml:"cancellation"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
}

// configDir returns ~/.config/bookingwatch, or the working directory when
// the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bookingwatch")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bookingwatch/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8080/api",
			TimeoutSec: 30,
			PageSize:   10,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(configDir(), "state.db"),
			RedisAddr:  "localhost:6379",
		},
		Polling: PollingConfig{
			BookingsIntervalSec: 10,
			RatingsIntervalSec:  15,
		},
		Notifications: NotificationsConfig{
			AutoExpireSec: 10,
		},
		Cancellation: CancellationConfig{
			AssumeCustomerWhenUnknown: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// BOOKINGWATCH_* environment variables override file values.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("bookingwatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.page_size", def.API.PageSize)
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.sqlite_path", def.Storage.SQLitePath)
	v.SetDefault("storage.redis_addr", def.Storage.RedisAddr)
	v.SetDefault("storage.redis_db", def.Storage.RedisDB)
	v.SetDefault("polling.bookings_interval_sec", def.Polling.BookingsIntervalSec)
	v.SetDefault("polling.ratings_interval_sec", def.Polling.RatingsIntervalSec)
	v.SetDefault("notifications.auto_expire_sec", def.Notifications.AutoExpireSec)
	v.SetDefault("cancellation.assume_customer_when_unknown", def.Cancellation.AssumeCustomerWhenUnknown)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.dev", def.Log.Dev)
	v.SetDefault("metrics.addr", def.Metrics.Addr)

	if err := v.ReadInConfig(); err != nil && !configMissing(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Storage.SQLitePath = expandHome(cfg.Storage.SQLitePath)
	if cfg.API.PageSize <= 0 {
		cfg.API.PageSize = def.API.PageSize
	}

	return cfg, nil
}

// configMissing reports whether a ReadInConfig error only means that there
// is no file to read.
func configMissing(err error) bool {
	if _, ok := err.(*os.PathError); ok {
		return true
	}
	_, ok := err.(viper.ConfigFileNotFoundError)
	return ok
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("storage", cfg.Storage)
	v.Set("polling", cfg.Polling)
	v.Set("notifications", cfg.Notifications)
	v.Set("cancellation", cfg.Cancellation)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
