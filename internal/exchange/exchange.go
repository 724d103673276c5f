// Package exchange holds what the BSE and NSE pipelines share: the state
// machine vocabulary, the download step and panic containment.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/fetcher"
	"github.com/seenimoa/annualreport/pkg/models"
	"github.com/seenimoa/annualreport/pkg/utils"
)

// Pipeline runs discovery through acquisition for one exchange.
type Pipeline interface {
	Exchange() models.Exchange
	Run(ctx context.Context, query string, year int, dir string, narrate models.Narrator) models.Outcome
}

// Downloader is the acquisition step. *fetcher.Fetcher satisfies it.
type Downloader interface {
	Fetch(ctx context.Context, url string, ex models.Exchange, destPath string) fetcher.Result
}

// State is a pipeline stage.
type State int

const (
	StateIdle State = iota
	StateDiscovering
	StateNavigating
	StateExtracting
	StateMatching
	StateFetching
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateDiscovering: "discovering",
	StateNavigating:  "navigating",
	StateExtracting:  "extracting",
	StateMatching:    "matching",
	StateFetching:    "fetching",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Tracker follows one pipeline invocation: it records the current state,
// logs transitions and prefixes narration with the exchange tag.
type Tracker struct {
	ex      models.Exchange
	state   State
	log     *zap.Logger
	narrate models.Narrator
	trail   []State
}

// NewTracker starts a tracker in StateIdle.
func NewTracker(ex models.Exchange, logger *zap.Logger, narrate models.Narrator) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{ex: ex, log: logger, narrate: narrate, trail: []State{StateIdle}}
}

// Enter moves to s.
func (t *Tracker) Enter(s State) {
	t.log.Debug("state transition", zap.Stringer("from", t.state), zap.Stringer("to", s))
	t.state = s
	t.trail = append(t.trail, s)
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Sayf narrates a line tagged with the exchange, e.g. "[BSE] Found ...".
func (t *Tracker) Sayf(format string, args ...any) {
	t.narrate.Sayf("[%s] %s", t.ex, fmt.Sprintf(format, args...))
}

// Fail ends the run in StateFailed and fills the failure fields of out.
func (t *Tracker) Fail(out *models.Outcome, kind models.FailureKind, cause error) {
	t.Enter(StateFailed)
	out.Success = false
	out.Kind = kind
	out.Cause = cause
	log := t.log.With(zap.Stringer("kind", kind), zap.Error(cause), zap.Stringers("trail", t.trail))
	if kind.Fatal() {
		log.Warn("pipeline failed")
	} else {
		log.Info("pipeline finished without a report")
	}
}

// Recover converts a panic inside a pipeline run into a navigation fault.
// It must be deferred directly by the Run method.
func (t *Tracker) Recover(out *models.Outcome) {
	if r := recover(); r != nil {
		t.log.Error("pipeline panic", zap.Any("panic", r), zap.Stringer("state", t.state))
		t.Fail(out, models.FailureNavigation, fmt.Errorf("panic while %s: %v", t.state, r))
	}
}

// ResolveKind maps a discovery error to its failure kind.
func ResolveKind(err error) models.FailureKind {
	if errors.Is(err, models.ErrCompanyNotFound) {
		return models.FailureNotFound
	}
	return models.FailureNavigation
}

// Download fetches url into dir under the canonical report filename and
// records the result on out.
func Download(ctx context.Context, d Downloader, t *Tracker, out *models.Outcome, id *models.Identity, url string, dir string) {
	t.Enter(StateFetching)
	name := utils.ReportFilename(out.Exchange.String(), id.DisplayName, out.Year)
	dest := filepath.Join(dir, name)
	t.Sayf("Downloading %s", url)

	res := d.Fetch(ctx, url, out.Exchange, dest)
	if !res.OK() {
		t.Fail(out, models.FailureFetch, fmt.Errorf("download %s: %w", url, res.Err))
		return
	}

	t.Enter(StateDone)
	out.Success = true
	out.Kind = models.FailureNone
	out.Path = res.Path
	out.Size = res.Size
	t.log.Info("report saved",
		zap.String("path", res.Path),
		zap.Int64("bytes", res.Size),
		zap.Stringers("trail", t.trail),
	)
}

// AbsoluteURL resolves href against the page it was found on. An
// unparsable href is returned as is.
func AbsoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
