// Package nse fetches annual reports from NSE India: symbol discovery over
// the autocomplete API, then the client-rendered corporate filings page.
package nse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/browser"
	"github.com/seenimoa/annualreport/internal/config"
	"github.com/seenimoa/annualreport/internal/exchange"
	"github.com/seenimoa/annualreport/internal/yearmatch"
	"github.com/seenimoa/annualreport/pkg/models"
)

// reportLinkSelector matches downloadable filings on the listing page.
const reportLinkSelector = `a[href*=".pdf" i], a[href*=".zip" i]`

// isReportLink reports whether href points at a PDF or ZIP filing.
func isReportLink(href string) bool {
	h := strings.ToLower(href)
	return strings.Contains(h, ".pdf") || strings.Contains(h, ".zip")
}

// Pipeline fetches NSE annual reports. Each Run gets its own browser
// session, cookie jar and rate limiter.
type Pipeline struct {
	cfg       config.NSEConfig
	wait      time.Duration
	timeout   time.Duration
	userAgent string
	launcher  browser.Launcher
	download  exchange.Downloader
	log       *zap.Logger
}

// New creates an NSE pipeline.
func New(cfg config.NSEConfig, browserCfg config.BrowserConfig, launcher browser.Launcher, d exchange.Downloader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := browserCfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Pipeline{
		cfg:       cfg,
		wait:      browserCfg.WaitTimeout,
		timeout:   browserCfg.NavigationTimeout,
		userAgent: ua,
		launcher:  launcher,
		download:  d,
		log:       logger.Named("nse"),
	}
}

// Exchange implements exchange.Pipeline.
func (p *Pipeline) Exchange() models.Exchange { return models.NSE }

// Resolve looks query up through the autocomplete API and returns the first
// hit's symbol and name.
func (p *Pipeline) Resolve(ctx context.Context, query string) (*models.Identity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", models.ErrCompanyNotFound)
	}
	c, err := newSearchClient(p.cfg.BaseURL, p.userAgent, p.timeout, p.cfg.RequestsPerSecond)
	if err != nil {
		return nil, err
	}
	hits, err := c.autocomplete(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("no NSE symbol for %q: %w", query, models.ErrCompanyNotFound)
	}
	return &models.Identity{
		Exchange:    models.NSE,
		Symbol:      hits[0].Symbol,
		DisplayName: hits[0].displayName(),
	}, nil
}

// ListingURL returns the corporate filings page for symbol.
func ListingURL(baseURL, symbol string) string {
	return fmt.Sprintf("%s/companies-listing/corporate-filings-annual-reports?symbol=%s",
		strings.TrimRight(baseURL, "/"), url.QueryEscape(symbol))
}

// ExtractLink scans report links in document order and returns the first
// whose text or href names the target year.
func ExtractLink(page, pageURL string, year int) (models.Candidate, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return models.Candidate{}, false, fmt.Errorf("parse listing page: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var found models.Candidate
	var ok bool
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !isReportLink(href) {
			return true
		}
		text := strings.Join(strings.Fields(a.Text()), " ")
		if !yearmatch.MatchesNSE(year, text, href) {
			return true
		}
		label := text
		if label == "" {
			label = yearmatch.CanonicalLabel(year)
		}
		found = models.Candidate{YearLabel: label, URL: exchange.AbsoluteURL(base, href)}
		ok = true
		return false
	})
	return found, ok, nil
}

// Run resolves query, opens the filings listing, picks the link for year and
// saves it under dir.
func (p *Pipeline) Run(ctx context.Context, query string, year int, dir string, narrate models.Narrator) (out models.Outcome) {
	out = models.Outcome{Exchange: models.NSE, Query: query, Year: year}
	log := p.log.With(zap.String("query", query), zap.Int("year", year))
	t := exchange.NewTracker(models.NSE, log, narrate)
	defer t.Recover(&out)

	t.Enter(exchange.StateDiscovering)
	t.Sayf("Searching for %s", query)
	id, err := p.Resolve(ctx, query)
	if err != nil {
		t.Fail(&out, exchange.ResolveKind(err), err)
		return out
	}
	out.Identity = id
	t.Sayf("Found %s (%s)", id.DisplayName, id.Symbol)

	session, err := p.launcher.NewSession(ctx)
	if err != nil {
		t.Fail(&out, models.FailureNavigation, fmt.Errorf("open browser: %w", err))
		return out
	}
	defer session.Close()

	t.Enter(exchange.StateNavigating)
	listing := ListingURL(p.cfg.BaseURL, id.Symbol)
	// The listing page only renders for a session that has seen the landing page.
	if err := session.Navigate(ctx, strings.TrimRight(p.cfg.BaseURL, "/")+"/"); err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	if err := session.Navigate(ctx, listing); err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	if err := browser.Settle(ctx, p.cfg.SettleDelay); err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}

	t.Enter(exchange.StateExtracting)
	if err := session.WaitReady(ctx, reportLinkSelector, p.wait); err != nil {
		if ctx.Err() != nil {
			t.Fail(&out, models.FailureNavigation, ctx.Err())
			return out
		}
		log.Debug("no report links rendered", zap.Error(err))
	}
	page, err := session.HTML(ctx)
	if err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	pageURL, err := session.Location(ctx)
	if err != nil {
		pageURL = listing
	}
	link, ok, err := ExtractLink(page, pageURL, year)
	if err != nil {
		t.Fail(&out, models.FailureNavigation, err)
		return out
	}
	if !ok {
		t.Fail(&out, models.FailureNoMatchingPeriod,
			fmt.Errorf("no %s filing for %s: %w", yearmatch.CanonicalLabel(year), id.Symbol, models.ErrNoMatchingPeriod))
		return out
	}
	t.Sayf("Matched %q", link.YearLabel)

	exchange.Download(ctx, p.download, t, &out, id, link.URL, dir)
	return out
}
