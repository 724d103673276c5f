package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seenimoa/annualreport/internal/browser"
	"github.com/seenimoa/annualreport/internal/browser/browsertest"
)

func TestSettle(t *testing.T) {
	start := time.Now()
	if err := browser.Settle(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Settle returned after %s, want >= 20ms", elapsed)
	}
}

func TestSettleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := browser.Settle(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Settle on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestFakeSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	fb := browsertest.New()
	fb.Pages["https://example.test/a"] = `<html><body><table><tr><td>x</td></tr></table></body></html>`
	fb.Redirects["https://example.test/old"] = "https://example.test/a"

	var launcher browser.Launcher = fb
	s, err := launcher.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Navigate(ctx, "https://example.test/old"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	loc, _ := s.Location(ctx)
	if loc != "https://example.test/a" {
		t.Errorf("Location = %q, want redirect target", loc)
	}
	if err := s.WaitReady(ctx, "table", time.Second); err != nil {
		t.Errorf("WaitReady(table): %v", err)
	}
	if err := s.WaitVisible(ctx, "#missing", time.Second); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitVisible(#missing) = %v, want DeadlineExceeded", err)
	}

	if fb.Open() != 1 {
		t.Errorf("Open = %d, want 1", fb.Open())
	}
	s.Close()
	s.Close()
	if fb.Open() != 0 {
		t.Errorf("Open after Close = %d, want 0", fb.Open())
	}
	if _, err := s.HTML(ctx); !errors.Is(err, browser.ErrClosed) {
		t.Errorf("HTML after Close = %v, want ErrClosed", err)
	}
}
