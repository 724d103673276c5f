package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	os.Unsetenv("CHROME_PATH")
	t.Chdir(t.TempDir()) // keep ./config out of the search path

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Browser defaults
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless should be true by default")
	}
	if cfg.Browser.NavigationTimeout != 60*time.Second {
		t.Errorf("Browser.NavigationTimeout: got %s, want 60s", cfg.Browser.NavigationTimeout)
	}
	if cfg.Browser.WaitTimeout != 15*time.Second {
		t.Errorf("Browser.WaitTimeout: got %s, want 15s", cfg.Browser.WaitTimeout)
	}
	if cfg.Browser.KeystrokeInterval != 120*time.Millisecond {
		t.Errorf("Browser.KeystrokeInterval: got %s, want 120ms", cfg.Browser.KeystrokeInterval)
	}
	if cfg.Browser.UserAgent != DefaultUserAgent {
		t.Errorf("Browser.UserAgent: got %q", cfg.Browser.UserAgent)
	}

	// Exchange defaults
	if cfg.BSE.BaseURL != "https://www.bseindia.com" {
		t.Errorf("BSE.BaseURL: got %q", cfg.BSE.BaseURL)
	}
	if cfg.BSE.SettleDelay != 3*time.Second {
		t.Errorf("BSE.SettleDelay: got %s, want 3s", cfg.BSE.SettleDelay)
	}
	if cfg.NSE.BaseURL != "https://www.nseindia.com" {
		t.Errorf("NSE.BaseURL: got %q", cfg.NSE.BaseURL)
	}
	if cfg.NSE.RequestsPerSecond != 3 {
		t.Errorf("NSE.RequestsPerSecond: got %v, want 3", cfg.NSE.RequestsPerSecond)
	}

	// Download defaults
	if cfg.Download.Dir != "Integrated_Downloads" {
		t.Errorf("Download.Dir: got %q", cfg.Download.Dir)
	}
	if cfg.Download.Timeout != 120*time.Second {
		t.Errorf("Download.Timeout: got %s, want 120s", cfg.Download.Timeout)
	}

	// API defaults
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.API.MaxJobs != 2 {
		t.Errorf("API.MaxJobs: got %d, want 2", cfg.API.MaxJobs)
	}

	if cfg.Cache.FeedTTL != 10*time.Minute {
		t.Errorf("Cache.FeedTTL: got %s, want 10m", cfg.Cache.FeedTTL)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "console")
	}
}

func TestDefaultMatchesLoad(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.BSE.SearchInput == "" || cfg.BSE.SuggestionSelector == "" {
		t.Error("BSE selectors should have defaults")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
browser:
  headless: false
  keystroke_interval: 50ms
  navigation_timeout: 90s
bse:
  settle_delay: 1s
nse:
  base_url: "http://127.0.0.1:9000"
download:
  dir: "/tmp/reports"
  verify_pdf: true
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless: got true, want false")
	}
	if cfg.Browser.KeystrokeInterval != 50*time.Millisecond {
		t.Errorf("Browser.KeystrokeInterval: got %s, want 50ms", cfg.Browser.KeystrokeInterval)
	}
	if cfg.Browser.NavigationTimeout != 90*time.Second {
		t.Errorf("Browser.NavigationTimeout: got %s, want 90s", cfg.Browser.NavigationTimeout)
	}
	if cfg.BSE.SettleDelay != time.Second {
		t.Errorf("BSE.SettleDelay: got %s, want 1s", cfg.BSE.SettleDelay)
	}
	if cfg.NSE.BaseURL != "http://127.0.0.1:9000" {
		t.Errorf("NSE.BaseURL: got %q", cfg.NSE.BaseURL)
	}
	if cfg.Download.Dir != "/tmp/reports" || !cfg.Download.VerifyPDF {
		t.Errorf("Download: got %+v", cfg.Download)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
	// Untouched keys keep their defaults.
	if cfg.Browser.WaitTimeout != 15*time.Second {
		t.Errorf("Browser.WaitTimeout: got %s, want default 15s", cfg.Browser.WaitTimeout)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  format: xml\n"), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	_, err := LoadFromFile(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format validation error, got %v", err)
	}
}

// ── Environment ──

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("ANNUALREPORT_DOWNLOAD_DIR", "/from/env")
	cfgPath := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(cfgPath, []byte("download:\n  dir: /from/file\n"), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Download.Dir != "/from/env" {
		t.Errorf("Download.Dir: got %q, want /from/env", cfg.Download.Dir)
	}
}

func TestOverrideFromEnvChromePath(t *testing.T) {
	t.Setenv("CHROME_PATH", "/usr/bin/chromium")

	cfg := &Config{}
	overrideFromEnv(cfg)
	if cfg.Browser.ExecPath != "/usr/bin/chromium" {
		t.Errorf("ExecPath: got %q", cfg.Browser.ExecPath)
	}

	cfg = &Config{Browser: BrowserConfig{ExecPath: "/opt/chrome"}}
	overrideFromEnv(cfg)
	if cfg.Browser.ExecPath != "/opt/chrome" {
		t.Errorf("explicit exec_path should win, got %q", cfg.Browser.ExecPath)
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }, "browser.navigation_timeout"},
		{"negative wait timeout", func(c *Config) { c.Browser.WaitTimeout = -time.Second }, "browser.wait_timeout"},
		{"negative settle", func(c *Config) { c.NSE.SettleDelay = -1 }, "settle"},
		{"zero rate", func(c *Config) { c.NSE.RequestsPerSecond = 0 }, "requests_per_second"},
		{"negative feed ttl", func(c *Config) { c.Cache.FeedTTL = -time.Minute }, "cache.feed_ttl"},
		{"zero max jobs", func(c *Config) { c.API.MaxJobs = 0 }, "api.max_jobs"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.errSub)
			}
		})
	}
}
