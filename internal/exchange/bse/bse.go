// Package bse drives the BSE India website: smart-search discovery, the
// annual reports table and its fiscal year labels.
package bse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/browser"
	"github.com/seenimoa/annualreport/internal/config"
	"github.com/seenimoa/annualreport/internal/exchange"
	"github.com/seenimoa/annualreport/internal/yearmatch"
	"github.com/seenimoa/annualreport/pkg/models"
)

// Pipeline fetches BSE annual reports. It holds configuration only; every
// Run opens its own browser session.
type Pipeline struct {
	cfg       config.BSEConfig
	keystroke time.Duration
	wait      time.Duration
	launcher  browser.Launcher
	download  exchange.Downloader
	log       *zap.Logger
}

// New creates a BSE pipeline.
func New(cfg config.BSEConfig, browserCfg config.BrowserConfig, launcher browser.Launcher, d exchange.Downloader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		keystroke: browserCfg.KeystrokeInterval,
		wait:      browserCfg.WaitTimeout,
		launcher:  launcher,
		download:  d,
		log:       logger.Named("bse"),
	}
}

// Exchange implements exchange.Pipeline.
func (p *Pipeline) Exchange() models.Exchange { return models.BSE }

// Run resolves query, opens its filings page, picks the report for year and
// saves it under dir. Every failure, panics included, ends in the returned
// outcome.
func (p *Pipeline) Run(ctx context.Context, query string, year int, dir string, narrate models.Narrator) (out models.Outcome) {
	out = models.Outcome{Exchange: models.BSE, Query: query, Year: year}
	log := p.log.With(zap.String("query", query), zap.Int("year", year))
	t := exchange.NewTracker(models.BSE, log, narrate)
	defer t.Recover(&out)

	session, err := p.launcher.NewSession(ctx)
	if err != nil {
		t.Fail(&out, models.FailureNavigation, fmt.Errorf("open browser: %w", err))
		return out
	}
	defer session.Close()

	t.Enter(exchange.StateDiscovering)
	t.Sayf("Searching for %s", query)
	id, err := p.Resolve(ctx, session, query)
	if err != nil {
		t.Fail(&out, exchange.ResolveKind(err), err)
		return out
	}
	out.Identity = id
	t.Sayf("Found %s (scrip %s)", id.DisplayName, id.Code)

	t.Enter(exchange.StateNavigating)
	filings := FilingsURL(p.cfg.BaseURL, id)
	if err := session.Navigate(ctx, filings); err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	if err := session.WaitReady(ctx, "table", p.wait); err != nil {
		t.Fail(&out, models.FailureNavigation, fmt.Errorf("annual reports table: %w", err))
		return out
	}
	if err := browser.Settle(ctx, p.cfg.SettleDelay); err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}

	t.Enter(exchange.StateExtracting)
	page, err := session.HTML(ctx)
	if err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	pageURL, err := session.Location(ctx)
	if err != nil {
		pageURL = filings
	}
	candidates, err := ExtractCandidates(page, pageURL)
	if err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	log.Debug("candidates extracted", zap.Int("count", len(candidates)))

	t.Enter(exchange.StateMatching)
	match, ok := Match(candidates, year)
	if !ok {
		t.Fail(&out, models.FailureNoMatchingPeriod,
			fmt.Errorf("%d filings listed, none for %d: %w", len(candidates), year, models.ErrNoMatchingPeriod))
		return out
	}
	t.Sayf("Matched %q", match.YearLabel)

	exchange.Download(ctx, p.download, t, &out, id, match.URL, dir)
	return out
}

// Match returns the first candidate whose label satisfies the BSE year rule.
func Match(candidates []models.Candidate, year int) (models.Candidate, bool) {
	for _, c := range candidates {
		if yearmatch.Matches(year, c.YearLabel, models.BSE) {
			return c, true
		}
	}
	return models.Candidate{}, false
}

