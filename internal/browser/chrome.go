package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/config"
)

// ChromeOptions configures Chrome sessions.
type ChromeOptions struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
}

// ChromeOptionsFromConfig maps the browser config section.
func ChromeOptionsFromConfig(cfg config.BrowserConfig) ChromeOptions {
	return ChromeOptions{
		Headless:          cfg.Headless,
		ExecPath:          cfg.ExecPath,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
		WaitTimeout:       cfg.WaitTimeout,
	}
}

// Chrome launches one Chrome process per session so that no cookies,
// cache or tabs leak between pipeline runs.
type Chrome struct {
	opts ChromeOptions
	log  *zap.Logger
}

// NewChrome creates a Chrome launcher.
func NewChrome(opts ChromeOptions, logger *zap.Logger) *Chrome {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 15 * time.Second
	}
	return &Chrome{opts: opts, log: logger.Named("browser")}
}

// NewSession starts a browser and returns its first tab.
func (c *Chrome) NewSession(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.UserAgent(c.opts.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(c.log.Sugar().Debugf),
		chromedp.WithErrorf(c.log.Sugar().Debugf),
	)

	// The first Run allocates the browser; it must not carry a step timeout
	// or the browser would die with it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	c.log.Debug("browser session started")
	return &chromeSession{
		ctx:    tabCtx,
		cancel: func() { cancelTab(); cancelAlloc() },
		opts:   c.opts,
		log:    c.log,
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel func()
	opts   ChromeOptions
	log    *zap.Logger

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// run executes actions on the tab bounded by timeout and by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.opts.WaitTimeout
	}
	if err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.opts.WaitTimeout
	}
	if err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait ready %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) TypeSlowly(ctx context.Context, selector, text string, interval time.Duration) error {
	actions := []chromedp.Action{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
	}
	n := 0
	for _, r := range text {
		actions = append(actions, chromedp.SendKeys(selector, string(r), chromedp.ByQuery))
		if interval > 0 {
			actions = append(actions, chromedp.Sleep(interval))
		}
		n++
	}
	timeout := s.opts.WaitTimeout + time.Duration(n)*interval
	if err := s.run(ctx, timeout, actions...); err != nil {
		return fmt.Errorf("type into %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) PressEnter(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.opts.WaitTimeout, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("press enter in %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.opts.WaitTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.opts.WaitTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.log.Debug("browser session closed")
	})
	return nil
}
