package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Energypulse EnergypulseConfig `yaml:"energypulse"`
	HTTP        HTTPConfig        `yaml:"http"`
	Cache       CacheConfig       `yaml:"cache"`
	Endpoints   EndpointsConfig   `yaml:"endpoints"`
	TTL         TTLConfig         `yaml:"ttl"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type EnergypulseConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type HTTPConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	UserAgent string          `yaml:"user_agent"`
}

type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	RetryableStatuses []int         `yaml:"retryable_statuses"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type CacheConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// EndpointsConfig carries the base URL of every upstream. Tests point these
// at local httptest servers.
type EndpointsConfig struct {
	EIA          string `yaml:"eia"`
	FRED         string `yaml:"fred"`
	WorldBank    string `yaml:"world_bank"`
	Currency     string `yaml:"currency"`
	OilPrice     string `yaml:"oilprice"`
	OilPriceDemo string `yaml:"oilprice_demo"`
	DataHubWTI   string `yaml:"datahub_wti"`
	DataHubBrent string `yaml:"datahub_brent"`
	LocalDataDir string `yaml:"local_data_dir"`
}

// TTLConfig groups cache lifetimes by data volatility class.
type TTLConfig struct {
	Prices     time.Duration `yaml:"prices"`
	Historical time.Duration `yaml:"historical"`
	Currency   time.Duration `yaml:"currency"`
	Inventory  time.Duration `yaml:"inventory"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level      string           `yaml:"level"`
	Format     string           `yaml:"format"`
	Output     string           `yaml:"output"`
	MaxAge     int              `yaml:"max_age"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// LoadConfig reads a YAML configuration file from the specified path,
// applying built-in defaults for anything the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse YAML: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the built-in configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Energypulse.Name == "" {
		c.Energypulse.Name = "energypulse"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 10 * time.Second
	}
	if c.HTTP.Retry.MaxRetries <= 0 {
		c.HTTP.Retry.MaxRetries = 3
	}
	if c.HTTP.Retry.BaseDelay <= 0 {
		c.HTTP.Retry.BaseDelay = time.Second
	}
	if len(c.HTTP.Retry.RetryableStatuses) == 0 {
		c.HTTP.Retry.RetryableStatuses = []int{408, 429, 500, 502, 503, 504}
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "EnergyPulse/1.0"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "data/cache.db"
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 500
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "CACHE_"
	}
	if c.Endpoints.EIA == "" {
		c.Endpoints.EIA = "https://api.eia.gov/v2"
	}
	if c.Endpoints.FRED == "" {
		c.Endpoints.FRED = "https://api.stlouisfed.org/fred"
	}
	if c.Endpoints.WorldBank == "" {
		c.Endpoints.WorldBank = "https://api.worldbank.org/v2"
	}
	if c.Endpoints.Currency == "" {
		c.Endpoints.Currency = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1"
	}
	if c.Endpoints.OilPrice == "" {
		c.Endpoints.OilPrice = "https://api.oilpriceapi.com/v1"
	}
	if c.Endpoints.OilPriceDemo == "" {
		c.Endpoints.OilPriceDemo = "https://api.oilpriceapi.com/v1/demo"
	}
	if c.Endpoints.DataHubWTI == "" {
		c.Endpoints.DataHubWTI = "https://datahub.io/core/oil-prices/r/wti-daily.csv"
	}
	if c.Endpoints.DataHubBrent == "" {
		c.Endpoints.DataHubBrent = "https://datahub.io/core/oil-prices/r/brent-daily.csv"
	}
	if c.Endpoints.LocalDataDir == "" {
		c.Endpoints.LocalDataDir = "data"
	}
	if c.TTL.Prices <= 0 {
		c.TTL.Prices = 15 * time.Minute
	}
	if c.TTL.Historical <= 0 {
		c.TTL.Historical = 24 * time.Hour
	}
	if c.TTL.Currency <= 0 {
		c.TTL.Currency = time.Hour
	}
	if c.TTL.Inventory <= 0 {
		c.TTL.Inventory = 24 * time.Hour
	}
	if c.Dashboard.Listen == "" {
		c.Dashboard.Listen = ":8085"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
