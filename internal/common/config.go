package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Provider    ProviderConfig `toml:"provider"`
	Storage     StorageConfig  `toml:"storage"`
	Cache       CacheConfig    `toml:"cache"`
	Refresh     RefreshConfig  `toml:"refresh"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ProviderConfig contains market-data provider settings
type ProviderConfig struct {
	APIKey            string `toml:"api_key" validate:"required"`
	BaseURL           string `toml:"base_url"`
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"gt=0"` // Provider per-minute call ceiling
	DailyQuota        int    `toml:"daily_quota" validate:"gt=0"`         // Provider daily call budget
	CallsPerEntity    int    `toml:"calls_per_entity" validate:"gt=0"`    // Provider calls consumed per refreshed entity
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// CacheConfig controls the provider response cache
type CacheConfig struct {
	TTL string `toml:"ttl"` // Entry time-to-live as a duration string (default: "168h" = 7 days)
}

// RefreshConfig controls refresh run behavior
type RefreshConfig struct {
	Limit    int    `toml:"limit" validate:"gt=0"` // Max entities per default run
	Pace     string `toml:"pace"`                  // Inter-entity delay as a duration string
	Schedule string `toml:"schedule"`              // Cron schedule for daemon mode
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Provider ceilings default to the free tier; only user-facing settings
// should need overriding in valuator.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Provider: ProviderConfig{
			BaseURL:           "", // Empty = client default
			RequestsPerMinute: 5,  // Free tier per-minute ceiling
			DailyQuota:        25, // Free tier daily budget
			CallsPerEntity:    2,  // OVERVIEW + CASH_FLOW per entity
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Cache: CacheConfig{
			TTL: "168h", // 7 days
		},
		Refresh: RefreshConfig{
			Limit:    7,
			Pace:     "15s",            // Conservative pacing under the per-minute ceiling
			Schedule: "0 30 6 * * 1-5", // 06:30 weekdays (daemon mode only)
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VALUATOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if apiKey := os.Getenv("VALUATOR_PROVIDER_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	}
	if baseURL := os.Getenv("VALUATOR_PROVIDER_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if rpm := os.Getenv("VALUATOR_PROVIDER_REQUESTS_PER_MINUTE"); rpm != "" {
		if v, err := strconv.Atoi(rpm); err == nil {
			config.Provider.RequestsPerMinute = v
		}
	}
	if quota := os.Getenv("VALUATOR_PROVIDER_DAILY_QUOTA"); quota != "" {
		if v, err := strconv.Atoi(quota); err == nil {
			config.Provider.DailyQuota = v
		}
	}

	if badgerPath := os.Getenv("VALUATOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if ttl := os.Getenv("VALUATOR_CACHE_TTL"); ttl != "" {
		config.Cache.TTL = ttl
	}

	if limit := os.Getenv("VALUATOR_REFRESH_LIMIT"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			config.Refresh.Limit = v
		}
	}
	if pace := os.Getenv("VALUATOR_REFRESH_PACE"); pace != "" {
		config.Refresh.Pace = pace
	}
	if schedule := os.Getenv("VALUATOR_REFRESH_SCHEDULE"); schedule != "" {
		config.Refresh.Schedule = schedule
	}

	if level := os.Getenv("VALUATOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate checks the loaded configuration for values the pipeline cannot
// run with. Called after all override layers have been applied.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("invalid cache.ttl: %w", err)
	}
	if _, err := c.RefreshPace(); err != nil {
		return fmt.Errorf("invalid refresh.pace: %w", err)
	}

	return nil
}

// CacheTTL returns the parsed cache entry time-to-live.
func (c *Config) CacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TTL)
}

// RefreshPace returns the parsed inter-entity pacing delay.
func (c *Config) RefreshPace() (time.Duration, error) {
	return time.ParseDuration(c.Refresh.Pace)
}
