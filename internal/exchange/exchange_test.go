package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/seenimoa/annualreport/internal/fetcher"
	"github.com/seenimoa/annualreport/pkg/models"
)

type stubDownloader struct {
	gotURL, gotDest string
	err             error
}

func (d *stubDownloader) Fetch(_ context.Context, url string, _ models.Exchange, dest string) fetcher.Result {
	d.gotURL, d.gotDest = url, dest
	if d.err != nil {
		return fetcher.Result{Path: dest, Err: d.err}
	}
	return fetcher.Result{Path: dest, Size: 42}
}

func TestStateString(t *testing.T) {
	if StateExtracting.String() != "extracting" {
		t.Errorf("StateExtracting = %q", StateExtracting)
	}
	if State(99).String() != "State(99)" {
		t.Errorf("State(99) = %q", State(99))
	}
}

func TestTrackerNarratesWithPrefix(t *testing.T) {
	var lines []string
	tr := NewTracker(models.NSE, nil, func(s string) { lines = append(lines, s) })
	tr.Sayf("Found %s", "INFY")
	if len(lines) != 1 || lines[0] != "[NSE] Found INFY" {
		t.Errorf("lines = %v", lines)
	}

	// A nil narrator is allowed.
	NewTracker(models.BSE, nil, nil).Sayf("ignored")
}

func TestDownloadSuccess(t *testing.T) {
	d := &stubDownloader{}
	tr := NewTracker(models.BSE, nil, nil)
	out := models.Outcome{Exchange: models.BSE, Year: 2024}
	id := &models.Identity{DisplayName: "Tata Motors / DVR"}

	Download(context.Background(), d, tr, &out, id, "https://x.test/r.pdf", "out")

	if !out.Success || out.Size != 42 || out.Kind != models.FailureNone {
		t.Fatalf("outcome = %+v", out)
	}
	want := filepath.Join("out", "BSE_Tata Motors _ DVR_2024_AnnualReport.pdf")
	if d.gotDest != want {
		t.Errorf("dest = %q, want %q", d.gotDest, want)
	}
	if tr.State() != StateDone {
		t.Errorf("state = %s, want done", tr.State())
	}
}

func TestTrackerLogsTrail(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tr := NewTracker(models.BSE, zap.New(core), nil)
	out := models.Outcome{Exchange: models.BSE, Year: 2024}

	tr.Enter(StateDiscovering)
	tr.Enter(StateNavigating)
	tr.Fail(&out, models.FailureNavigation, errors.New("no table"))

	entries := logs.FilterMessage("pipeline failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure entries, want 1", len(entries))
	}
	got := fmt.Sprint(entries[0].ContextMap()["trail"])
	if want := "[idle discovering navigating failed]"; got != want {
		t.Errorf("trail = %s, want %s", got, want)
	}

	logs.TakeAll()
	Download(context.Background(), &stubDownloader{}, NewTracker(models.NSE, zap.New(core), nil),
		&models.Outcome{Exchange: models.NSE, Year: 2024}, &models.Identity{DisplayName: "X"}, "u", "out")
	saved := logs.FilterMessage("report saved").All()
	if len(saved) != 1 || fmt.Sprint(saved[0].ContextMap()["trail"]) != "[idle fetching done]" {
		t.Errorf("report saved entries = %+v", saved)
	}
}

func TestDownloadFailure(t *testing.T) {
	cause := &fetcher.StatusError{URL: "u", StatusCode: 403, Status: "Forbidden"}
	tr := NewTracker(models.NSE, nil, nil)
	out := models.Outcome{Exchange: models.NSE, Year: 2024}

	Download(context.Background(), &stubDownloader{err: cause}, tr, &out, &models.Identity{DisplayName: "X"}, "u", t.TempDir())

	if out.Success || out.Kind != models.FailureFetch || tr.State() != StateFailed {
		t.Fatalf("outcome = %+v state = %s", out, tr.State())
	}
	var se *fetcher.StatusError
	if !errors.As(out.Err(), &se) {
		t.Errorf("Err() = %v, want wrapped StatusError", out.Err())
	}
}

func TestRecover(t *testing.T) {
	run := func() (out models.Outcome) {
		tr := NewTracker(models.BSE, nil, nil)
		defer tr.Recover(&out)
		tr.Enter(StateExtracting)
		panic("boom")
	}
	out := run()
	if out.Success || out.Kind != models.FailureNavigation {
		t.Fatalf("outcome = %+v", out)
	}
	if want := "panic while extracting: boom"; out.Cause == nil || out.Cause.Error() != want {
		t.Errorf("Cause = %v, want %q", out.Cause, want)
	}
}

func TestResolveKind(t *testing.T) {
	if k := ResolveKind(fmt.Errorf("x: %w", models.ErrCompanyNotFound)); k != models.FailureNotFound {
		t.Errorf("not found -> %s", k)
	}
	if k := ResolveKind(errors.New("timeout")); k != models.FailureNavigation {
		t.Errorf("other -> %s", k)
	}
}

func TestAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://www.bseindia.com/stock-share-price/a/b/500325/financials-annual-reports/")
	tests := []struct{ href, want string }{
		{"/bseplus/r.pdf", "https://www.bseindia.com/bseplus/r.pdf"},
		{"r.pdf", "https://www.bseindia.com/stock-share-price/a/b/500325/financials-annual-reports/r.pdf"},
		{" https://cdn.test/x.pdf ", "https://cdn.test/x.pdf"},
	}
	for _, tt := range tests {
		if got := AbsoluteURL(base, tt.href); got != tt.want {
			t.Errorf("AbsoluteURL(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
	if got := AbsoluteURL(nil, "r.pdf"); got != "r.pdf" {
		t.Errorf("nil base = %q", got)
	}
}
