package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"marketpulse/internal/fallback"
	"marketpulse/internal/marketclock"
	"marketpulse/internal/ratelimit"
)

// DefaultTimezone is the exchange's local zone
const DefaultTimezone = "Asia/Kolkata"

// Config holds all configuration for the market data service.
type Config struct {
	// Durable cache
	CachePath       string `mapstructure:"cache_path"`
	CacheSigningKey string `mapstructure:"cache_signing_key"`

	LogLevel string `mapstructure:"log_level"`

	// Market calendar. Holidays are YYYY-MM-DD dates; empty means the built-in list.
	Timezone string   `mapstructure:"timezone"`
	Holidays []string `mapstructure:"holidays"`

	// Bulk fetch. A zero worker timeout follows each category's fallback budget.
	MaxWorkers    int           `mapstructure:"max_workers"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`

	// Source fallback. Categories override the built-in table per category.
	DisabledCategories []string           `mapstructure:"disabled_categories"`
	Categories         fallback.Table     `mapstructure:"categories"`
	RateLimits         map[string]float64 `mapstructure:"rate_limits"`

	// API keys
	AlphavantageAPIKey string `mapstructure:"alphavantage_api_key"`
	EtherscanAPIKey    string `mapstructure:"etherscan_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL        string `mapstructure:"yahoo_base_url"`
	NSEBaseURL          string `mapstructure:"nse_base_url"`
	NSEArchiveURL       string `mapstructure:"nse_archive_url"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url"`
	EtherscanBaseURL    string `mapstructure:"etherscan_base_url"`
	MoneycontrolBaseURL string `mapstructure:"moneycontrol_base_url"`
}

// Loader reads configuration from the environment and an optional YAML file
// and can watch that file for changes.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader. With an empty configFile, config.yaml is
// looked up in the working directory and in $HOME/.marketpulse.
//
// Environment variables take precedence over config file values:
//   - CACHE_PATH, CACHE_SIGNING_KEY
//   - LOG_LEVEL
//   - MARKET_TIMEZONE, MARKET_HOLIDAYS (comma separated)
//   - MAX_WORKERS, WORKER_TIMEOUT, RETRY_DELAY
//   - DISABLED_CATEGORIES (comma separated)
//   - ALPHAVANTAGE_API_KEY, ETHERSCAN_API_KEY
//   - YAHOO_BASE_URL, NSE_BASE_URL, NSE_ARCHIVE_URL,
//     ALPHAVANTAGE_BASE_URL, ETHERSCAN_BASE_URL, MONEYCONTROL_BASE_URL
//     (optional, default to production)
func NewLoader(configFile string) *Loader {
	v := viper.New()

	v.SetDefault("cache_path", "cache/market_cache.json")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("max_workers", 3)
	v.SetDefault("worker_timeout", "0s")
	v.SetDefault("retry_delay", "1s")

	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("nse_base_url", "https://www.nseindia.com")
	v.SetDefault("nse_archive_url", "https://nsearchives.nseindia.com")
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("etherscan_base_url", "https://api.etherscan.io/v2/api")
	v.SetDefault("moneycontrol_base_url", "https://www.moneycontrol.com")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.marketpulse")
	}

	v.BindEnv("cache_path", "CACHE_PATH")
	v.BindEnv("cache_signing_key", "CACHE_SIGNING_KEY")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("timezone", "MARKET_TIMEZONE")
	v.BindEnv("holidays", "MARKET_HOLIDAYS")
	v.BindEnv("max_workers", "MAX_WORKERS")
	v.BindEnv("worker_timeout", "WORKER_TIMEOUT")
	v.BindEnv("retry_delay", "RETRY_DELAY")
	v.BindEnv("disabled_categories", "DISABLED_CATEGORIES")

	v.BindEnv("alphavantage_api_key", "ALPHAVANTAGE_API_KEY")
	v.BindEnv("etherscan_api_key", "ETHERSCAN_API_KEY")

	v.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
	v.BindEnv("nse_base_url", "NSE_BASE_URL")
	v.BindEnv("nse_archive_url", "NSE_ARCHIVE_URL")
	v.BindEnv("alphavantage_base_url", "ALPHAVANTAGE_BASE_URL")
	v.BindEnv("etherscan_base_url", "ETHERSCAN_BASE_URL")
	v.BindEnv("moneycontrol_base_url", "MONEYCONTROL_BASE_URL")

	return &Loader{v: v}
}

// Load reads configuration using the default search paths
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// Load reads and validates the configuration. A missing config file is only
// an error when one was named explicitly.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return l.decode()
}

// ConfigFile returns the file in use, or "" when running from env and defaults only
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the new configuration each time the config file
// changes. Invalid edits are logged and skipped. It reports false when there is
// no file to watch.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			slog.Warn("ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		slog.Info("configuration reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}

func (l *Loader) decode() (*Config, error) {
	config := &Config{}
	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.CachePath) == "" {
		problems = append(problems, "cache_path must not be empty")
	}
	if _, err := c.Level(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.HolidayList(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.MaxWorkers < 1 {
		problems = append(problems, fmt.Sprintf("max_workers must be at least 1, got %d", c.MaxWorkers))
	}
	if c.RetryDelay < 0 {
		problems = append(problems, fmt.Sprintf("retry_delay must not be negative, got %s", c.RetryDelay))
	}

	table := c.CategoryTable()
	switch stocks := table[fallback.CategoryStockPrices]; {
	case c.WorkerTimeout < 0:
		problems = append(problems, fmt.Sprintf("worker_timeout must not be negative, got %s", c.WorkerTimeout))
	case c.WorkerTimeout > 0 && !stocks.Disabled:
		if budget, ok := stocks.Budget(c.effectiveRetryDelay()); ok && c.WorkerTimeout < budget {
			problems = append(problems, fmt.Sprintf("worker_timeout %s is shorter than the %s fallback budget %s", c.WorkerTimeout, fallback.CategoryStockPrices, budget))
		}
	}
	for _, name := range c.DisabledCategories {
		if _, ok := table[name]; !ok {
			problems = append(problems, fmt.Sprintf("disabled_categories: unknown category %q", name))
		}
	}
	for name, category := range c.Categories {
		for i, s := range category.Sources {
			if s.Name == "" {
				problems = append(problems, fmt.Sprintf("categories.%s.sources[%d]: name is required", name, i))
			}
			if s.TimeoutSeconds < 0 || s.RetryCount < 0 {
				problems = append(problems, fmt.Sprintf("categories.%s.sources[%d]: timeout and retry_count must not be negative", name, i))
			}
		}
	}
	for source, rps := range c.RateLimits {
		if rps < 0 {
			problems = append(problems, fmt.Sprintf("rate_limits.%s must not be negative", source))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Level parses LogLevel (debug, info, warn, error)
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q is not a valid level", c.LogLevel)
	}
	return level, nil
}

// Location loads the market timezone. The default zone falls back to a fixed
// offset when the tz database is unavailable.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == DefaultTimezone {
		return marketclock.DefaultLocation(), nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HolidayList returns the configured holidays, or the built-in list when none are set
func (c *Config) HolidayList() ([]marketclock.Holiday, error) {
	if len(c.Holidays) == 0 {
		return marketclock.DefaultHolidays(), nil
	}
	holidays, err := marketclock.ParseHolidays(c.Holidays)
	if err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	return holidays, nil
}

// CategoryTable is the built-in table with configured categories laid over it
// and disabled categories switched off
func (c *Config) CategoryTable() fallback.Table {
	table := fallback.DefaultCategories()
	for name, category := range c.Categories {
		table[name] = category
	}
	for _, name := range c.DisabledCategories {
		if category, ok := table[name]; ok {
			category.Disabled = true
			table[name] = category
		}
	}
	return table
}

// effectiveRetryDelay is the pause the orchestrator will actually use
func (c *Config) effectiveRetryDelay() time.Duration {
	if c.RetryDelay == 0 {
		return fallback.DefaultRetryDelay
	}
	return max(c.RetryDelay, 0)
}

// Limits is the built-in per-source throttle with configured budgets laid over it
func (c *Config) Limits() map[string]float64 {
	limits := ratelimit.DefaultLimits()
	for source, rps := range c.RateLimits {
		limits[source] = rps
	}
	return limits
}
