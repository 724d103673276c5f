// Package browsertest provides an in-memory browser.Launcher that serves
// canned HTML per URL, for testing pipelines without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/annualreport/internal/browser"
)

// blankPage is served for URLs with no canned content.
const blankPage = "<html><head></head><body></body></html>"

// Browser is a fake launcher. Configure the maps before the first session;
// they are read-only afterwards.
type Browser struct {
	// Pages maps an absolute URL to the HTML served after navigating to it.
	Pages map[string]string
	// Redirects maps a requested URL to the URL the page ends up on.
	Redirects map[string]string
	// Typed maps text typed into any input to the HTML shown afterwards,
	// e.g. a page with an autocomplete dropdown.
	Typed map[string]string
	// Enter maps typed text to the URL loaded when Enter is pressed.
	Enter map[string]string
	// NavErrors fails navigation to the given URLs.
	NavErrors map[string]error
	// LaunchErr fails every NewSession call.
	LaunchErr error
	// PanicOn panics when navigating to the given URL.
	PanicOn string

	mu       sync.Mutex
	sessions []*Session
	visits   []string
}

// New returns an empty fake browser.
func New() *Browser {
	return &Browser{
		Pages:     map[string]string{},
		Redirects: map[string]string{},
		Typed:     map[string]string{},
		Enter:     map[string]string{},
		NavErrors: map[string]error{},
	}
}

// NewSession implements browser.Launcher.
func (b *Browser) NewSession(ctx context.Context) (browser.Session, error) {
	if b.LaunchErr != nil {
		return nil, b.LaunchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &Session{b: b, url: "about:blank", html: blankPage}
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

// Launched returns how many sessions were created.
func (b *Browser) Launched() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Open returns how many sessions have not been closed.
func (b *Browser) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.sessions {
		if !s.closed {
			n++
		}
	}
	return n
}

// Visits returns every URL navigated to, across sessions, in order.
func (b *Browser) Visits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

// Session is a fake browser.Session.
type Session struct {
	b      *Browser
	url    string
	html   string
	typed  string
	closed bool
}

func (s *Session) load(url string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return browser.ErrClosed
	}
	s.b.visits = append(s.b.visits, url)
	if err, ok := s.b.NavErrors[url]; ok {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if s.b.PanicOn != "" && s.b.PanicOn == url {
		panic("browsertest: panic on " + url)
	}
	final := url
	if to, ok := s.b.Redirects[url]; ok {
		final = to
	}
	s.url = final
	s.html = blankPage
	if html, ok := s.b.Pages[final]; ok {
		s.html = html
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.load(url)
}

func (s *Session) matches(selector string) (bool, error) {
	s.b.mu.Lock()
	html, closed := s.html, s.closed
	s.b.mu.Unlock()
	if closed {
		return false, browser.ErrClosed
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (s *Session) wait(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := s.matches(selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("wait %q: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	return s.wait(ctx, selector)
}

func (s *Session) WaitReady(ctx context.Context, selector string, _ time.Duration) error {
	return s.wait(ctx, selector)
}

func (s *Session) TypeSlowly(ctx context.Context, selector, text string, _ time.Duration) error {
	if err := s.wait(ctx, selector); err != nil {
		return err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.typed = text
	if html, ok := s.b.Typed[text]; ok {
		s.html = html
	}
	return nil
}

func (s *Session) PressEnter(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.b.mu.Lock()
	to, ok := s.b.Enter[s.typed]
	s.b.mu.Unlock()
	if !ok {
		return nil
	}
	return s.load(to)
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return "", browser.ErrClosed
	}
	return s.html, ctx.Err()
}

func (s *Session) Location(ctx context.Context) (string, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return "", browser.ErrClosed
	}
	return s.url, ctx.Err()
}

func (s *Session) Close() error {
	s.b.mu.Lock()
	s.closed = true
	s.b.mu.Unlock()
	return nil
}
