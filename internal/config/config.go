// Package config handles configuration loading for the annual report
// downloader. It supports YAML config files with environment variable
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	BSE      BSEConfig      `mapstructure:"bse"      yaml:"bse"`
	NSE      NSEConfig      `mapstructure:"nse"      yaml:"nse"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// BrowserConfig controls the headless browser sessions.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path"          yaml:"exec_path"` // empty: chromedp looks up Chrome
	UserAgent         string        `mapstructure:"user_agent"         yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"       yaml:"wait_timeout"`
	KeystrokeInterval time.Duration `mapstructure:"keystroke_interval" yaml:"keystroke_interval"`
}

// BSEConfig holds BSE site locations, selectors and settle timing.
type BSEConfig struct {
	BaseURL            string        `mapstructure:"base_url"            yaml:"base_url"`
	SearchPath         string        `mapstructure:"search_path"         yaml:"search_path"`
	SearchInput        string        `mapstructure:"search_input"        yaml:"search_input"`
	SuggestionSelector string        `mapstructure:"suggestion_selector" yaml:"suggestion_selector"`
	SuggestionTimeout  time.Duration `mapstructure:"suggestion_timeout"  yaml:"suggestion_timeout"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"        yaml:"settle_delay"`
}

// NSEConfig holds NSE site locations and pacing.
type NSEConfig struct {
	BaseURL           string        `mapstructure:"base_url"            yaml:"base_url"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"        yaml:"settle_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	FeedURL           string        `mapstructure:"feed_url"            yaml:"feed_url"`
}

// DownloadConfig controls artifact retrieval.
type DownloadConfig struct {
	Dir       string        `mapstructure:"dir"        yaml:"dir"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	VerifyPDF bool          `mapstructure:"verify_pdf" yaml:"verify_pdf"`
}

// CacheConfig controls the in-memory cache of the parsed filings feed.
type CacheConfig struct {
	FeedTTL time.Duration `mapstructure:"feed_ttl" yaml:"feed_ttl"` // 0 disables
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxJobs     int      `mapstructure:"max_jobs"     yaml:"max_jobs"` // jobs downloading at once
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.annualreport/config.yaml (home directory)
//  3. /etc/annualreport/config.yaml (system)
//
// Environment variables override config file values.
// Format: ANNUALREPORT_<SECTION>_<KEY>, e.g., ANNUALREPORT_DOWNLOAD_DIR
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".annualreport"))
	v.AddConfigPath("/etc/annualreport")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// Default returns the built-in defaults without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &cfg
}

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"browser.wait_timeout":       c.Browser.WaitTimeout,
		"download.timeout":           c.Download.Timeout,
		"bse.suggestion_timeout":     c.BSE.SuggestionTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.Cache.FeedTTL < 0 {
		return fmt.Errorf("cache.feed_ttl must not be negative, got %s", c.Cache.FeedTTL)
	}
	if c.Browser.KeystrokeInterval < 0 || c.BSE.SettleDelay < 0 || c.NSE.SettleDelay < 0 {
		return fmt.Errorf("keystroke interval and settle delays must not be negative")
	}
	if c.API.MaxJobs < 1 {
		return fmt.Errorf("api.max_jobs must be at least 1, got %d", c.API.MaxJobs)
	}
	if c.NSE.RequestsPerSecond <= 0 {
		return fmt.Errorf("nse.requests_per_second must be positive, got %v", c.NSE.RequestsPerSecond)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ANNUALREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Browser defaults
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.navigation_timeout", 60*time.Second)
	v.SetDefault("browser.wait_timeout", 15*time.Second)
	v.SetDefault("browser.keystroke_interval", 120*time.Millisecond)

	// BSE defaults
	v.SetDefault("bse.base_url", "https://www.bseindia.com")
	v.SetDefault("bse.search_path", "/getquote.aspx")
	v.SetDefault("bse.search_input", "#getquotesearch")
	v.SetDefault("bse.suggestion_selector", "#ulSearchQuote2 li")
	v.SetDefault("bse.suggestion_timeout", 5*time.Second)
	v.SetDefault("bse.settle_delay", 3*time.Second)

	// NSE defaults
	v.SetDefault("nse.base_url", "https://www.nseindia.com")
	v.SetDefault("nse.settle_delay", 3*time.Second)
	v.SetDefault("nse.requests_per_second", 3)
	v.SetDefault("nse.feed_url", "https://nsearchives.nseindia.com/content/RSS/Annual_Reports.xml")

	// Download defaults
	v.SetDefault("download.dir", "Integrated_Downloads")
	v.SetDefault("download.timeout", 120*time.Second)
	v.SetDefault("download.verify_pdf", false)

	// Cache defaults
	v.SetDefault("cache.feed_ttl", 10*time.Minute)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.max_jobs", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// DefaultUserAgent is the browser-like user agent sent to both exchanges.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// overrideFromEnv reads the conventional CHROME_PATH when no explicit
// browser.exec_path is configured.
func overrideFromEnv(cfg *Config) {
	if cfg.Browser.ExecPath != "" {
		return
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		cfg.Browser.ExecPath = p
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
