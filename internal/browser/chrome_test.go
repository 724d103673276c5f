package browser

import (
	"testing"
	"time"

	"github.com/seenimoa/annualreport/internal/config"
)

func TestChromeOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Browser
	cfg.ExecPath = "/opt/chrome/chrome"

	opts := ChromeOptionsFromConfig(cfg)
	if !opts.Headless {
		t.Error("Headless = false, want default true")
	}
	if opts.ExecPath != "/opt/chrome/chrome" {
		t.Errorf("ExecPath = %q", opts.ExecPath)
	}
	if opts.NavigationTimeout != 60*time.Second || opts.WaitTimeout != 15*time.Second {
		t.Errorf("timeouts = %s/%s, want 60s/15s", opts.NavigationTimeout, opts.WaitTimeout)
	}
}

func TestNewChromeFillsDefaults(t *testing.T) {
	c := NewChrome(ChromeOptions{}, nil)
	if c.opts.UserAgent != config.DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", c.opts.UserAgent)
	}
	if c.opts.NavigationTimeout <= 0 || c.opts.WaitTimeout <= 0 {
		t.Errorf("timeouts not defaulted: %+v", c.opts)
	}
	if c.log == nil {
		t.Error("logger is nil")
	}
}
