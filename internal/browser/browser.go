// Package browser defines the page-automation session each pipeline run
// owns, and a Chrome implementation backed by chromedp.
//
// A Session is never shared: the run that obtains it from a Launcher is the
// only user and must Close it on every exit path.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by every Session method after Close.
var ErrClosed = errors.New("browser session closed")

// Session is one isolated browser tab with its own cookies and storage.
type Session interface {
	// Navigate loads url and waits for the load event, bounded by the
	// session's navigation timeout.
	Navigate(ctx context.Context, url string) error

	// WaitVisible waits until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// WaitReady waits until selector matches an element in the DOM.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error

	// TypeSlowly sends text to the element one character at a time, pausing
	// interval between keystrokes.
	TypeSlowly(ctx context.Context, selector, text string, interval time.Duration) error

	// PressEnter sends the Enter key to the element.
	PressEnter(ctx context.Context, selector string) error

	// HTML returns the current document's outer HTML.
	HTML(ctx context.Context) (string, error)

	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Launcher creates sessions.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
}

// Settle blocks for d or until ctx is done. It is the bounded fallback for
// client-rendered content that has no completion signal.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
