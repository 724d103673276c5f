// Package engine is the entry point callers use to fetch annual reports. It
// prepares the destination, dispatches to the exchange pipeline and narrates
// the outcome. The engine keeps no per-call state, so one instance serves
// concurrent callers.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/annualreport/internal/browser"
	"github.com/seenimoa/annualreport/internal/config"
	"github.com/seenimoa/annualreport/internal/exchange"
	"github.com/seenimoa/annualreport/internal/exchange/bse"
	"github.com/seenimoa/annualreport/internal/exchange/nse"
	"github.com/seenimoa/annualreport/internal/fetcher"
	"github.com/seenimoa/annualreport/pkg/models"
	"github.com/seenimoa/annualreport/pkg/utils"
)

// Engine runs exchange pipelines.
type Engine struct {
	pipelines map[models.Exchange]exchange.Pipeline
	narrate   models.Narrator
	log       *zap.Logger
}

// New creates an engine over the given pipelines.
func New(logger *zap.Logger, pipelines ...exchange.Pipeline) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := make(map[models.Exchange]exchange.Pipeline, len(pipelines))
	for _, p := range pipelines {
		m[p.Exchange()] = p
	}
	return &Engine{pipelines: m, log: logger.Named("engine")}
}

// NewFromConfig wires the BSE and NSE pipelines with a shared fetcher.
func NewFromConfig(cfg *config.Config, launcher browser.Launcher, logger *zap.Logger) *Engine {
	f := fetcher.New(fetcher.OptionsFromConfig(cfg, logger))
	return New(logger,
		bse.New(cfg.BSE, cfg.Browser, launcher, f, logger),
		nse.New(cfg.NSE, cfg.Browser, launcher, f, logger),
	)
}

// WithNarrator returns a copy of the engine that sends progress lines to n.
func (e *Engine) WithNarrator(n models.Narrator) *Engine {
	c := *e
	c.narrate = n
	return &c
}

// RunBSE fetches the BSE report for query and reports whether a file was
// written.
func (e *Engine) RunBSE(ctx context.Context, query string, year int, dir string) bool {
	return e.Run(ctx, models.BSE, query, year, dir).Success
}

// RunNSE fetches the NSE report for query and reports whether a file was
// written.
func (e *Engine) RunNSE(ctx context.Context, query string, year int, dir string) bool {
	return e.Run(ctx, models.NSE, query, year, dir).Success
}

// Run fetches one report and returns the typed outcome. No error escapes:
// every failure is carried in the outcome.
func (e *Engine) Run(ctx context.Context, ex models.Exchange, query string, year int, dir string) models.Outcome {
	out := models.Outcome{Exchange: ex, Query: query, Year: year}
	log := e.log.With(zap.Stringer("exchange", ex), zap.String("query", query), zap.Int("year", year))

	p, ok := e.pipelines[ex]
	if !ok {
		out.Kind = models.FailureNavigation
		out.Cause = fmt.Errorf("no pipeline for exchange %q", ex)
		e.report(out)
		return out
	}
	if year < 1000 || year > 9999 {
		out.Kind = models.FailureNoMatchingPeriod
		out.Cause = fmt.Errorf("target year %d is not a 4-digit year: %w", year, models.ErrNoMatchingPeriod)
		e.report(out)
		return out
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		out.Kind = models.FailureFetch
		out.Cause = fmt.Errorf("create %s: %w", dir, err)
		e.report(out)
		return out
	}

	e.narrate.Sayf("[%s] Looking up %d annual report for %s", ex, year, query)
	log.Info("run started", zap.String("dir", dir))

	out = p.Run(ctx, query, year, dir, e.narrate)
	e.report(out)
	log.Info("run finished", zap.Bool("success", out.Success), zap.Stringer("kind", out.Kind))
	return out
}

// report narrates the terminal line of a run.
func (e *Engine) report(out models.Outcome) {
	switch out.Kind {
	case models.FailureNone:
		e.narrate.Sayf("✔ %s Downloaded: %s (%s)", out.Exchange, filepath.Base(out.Path), utils.FormatBytes(out.Size))
	case models.FailureNotFound:
		e.narrate.Sayf("[%s] Company not found: %s", out.Exchange, out.Query)
	case models.FailureNoMatchingPeriod:
		e.narrate.Sayf("[%s] No report found for %d", out.Exchange, out.Year)
	default:
		e.narrate.Sayf("[%s ERROR] %s", out.Exchange, out.Detail())
	}
}

// RunBatch processes companies one after another; for each company the
// selected exchanges run concurrently. Outcomes are returned company-major in
// input order.
func (e *Engine) RunBatch(ctx context.Context, companies []string, year int, exchanges []models.Exchange, dir string) []models.Outcome {
	batch := e.WithNarrator(e.narrate.Synchronized())
	outcomes := make([]models.Outcome, 0, len(companies)*len(exchanges))

	for _, company := range companies {
		batch.narrate.Sayf("Processing: %s...", company)
		row := make([]models.Outcome, len(exchanges))
		var g errgroup.Group
		for i, ex := range exchanges {
			g.Go(func() error {
				row[i] = batch.Run(ctx, ex, company, year, dir)
				return nil
			})
		}
		g.Wait() //nolint:errcheck // runs never return errors; outcomes carry them
		outcomes = append(outcomes, row...)
	}
	return outcomes
}
