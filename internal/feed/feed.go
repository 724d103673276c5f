// Package feed reads NSE's annual report RSS feed, the quickest way to see
// which companies have filed recently without driving a browser.
package feed

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/infra"
	"github.com/seenimoa/annualreport/internal/yearmatch"
)

// Filing is one feed entry.
type Filing struct {
	Company   string    `json:"company"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	YearLabel string    `json:"year_label,omitempty"`
	URL       string    `json:"url"`
	Published time.Time `json:"published,omitzero"`
}

// Query narrows a feed read. Zero values mean no filter.
type Query struct {
	Company string // case-insensitive substring of the company or summary
	Year    int    // NSE year rule against summary and link
	Limit   int
	Refresh bool // bypass the cache and re-read the feed
}

var fiscalLabel = regexp.MustCompile(`\b(?:19|20)\d{2}\s*-\s*\d{2,4}\b`)

// Client fetches the feed.
type Client struct {
	url    string
	parser *gofeed.Parser
	cache  *infra.Cache[[]Filing]
	log    *zap.Logger
}

// New creates a feed client for url.
func New(url, userAgent string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	p.Client = &http.Client{Timeout: timeout}
	return &Client{url: url, parser: p, log: logger.Named("feed")}
}

// WithCache keeps the parsed feed for ttl so repeated reads do not hit
// NSE. A non-positive ttl turns caching off.
func (c *Client) WithCache(ttl time.Duration) *Client {
	c.cache = infra.NewCache[[]Filing](ttl)
	return c
}

// Recent returns filings newest first, filtered by q.
func (c *Client) Recent(ctx context.Context, q Query) ([]Filing, error) {
	if q.Refresh {
		c.cache.Invalidate(c.url)
	}
	all, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	filings := make([]Filing, 0, len(all))
	for _, fl := range all {
		if q.matches(fl) {
			filings = append(filings, fl)
		}
	}

	slices.SortStableFunc(filings, func(a, b Filing) int {
		return cmp.Compare(b.Published.UnixNano(), a.Published.UnixNano())
	})
	if q.Limit > 0 && len(filings) > q.Limit {
		filings = filings[:q.Limit]
	}
	return filings, nil
}

// load returns every feed entry, from the cache when it is fresh.
// The returned slice is shared and must not be modified.
func (c *Client) load(ctx context.Context) ([]Filing, error) {
	if all, ok := c.cache.Get(c.url); ok {
		return all, nil
	}
	f, err := c.parser.ParseURLWithContext(c.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", c.url, err)
	}
	c.log.Debug("feed fetched", zap.Int("items", len(f.Items)))

	all := make([]Filing, 0, len(f.Items))
	for _, item := range f.Items {
		all = append(all, toFiling(item))
	}
	c.cache.Set(c.url, all)
	return all, nil
}

func toFiling(item *gofeed.Item) Filing {
	fl := Filing{
		Company: strings.TrimSpace(item.Title),
		Title:   strings.TrimSpace(item.Title),
		Summary: cleanHTML(item.Description),
		URL:     strings.TrimSpace(item.Link),
	}
	if fl.URL == "" && len(item.Enclosures) > 0 {
		fl.URL = item.Enclosures[0].URL
	}
	if item.PublishedParsed != nil {
		fl.Published = *item.PublishedParsed
	}
	// NSE puts the company in the title and "Annual Report for ... 2024-25"
	// in the description; some items lead the title with the symbol.
	if sym, rest, ok := strings.Cut(fl.Company, " - "); ok && sym == strings.ToUpper(sym) {
		fl.Company = strings.TrimSpace(rest)
	}
	if m := fiscalLabel.FindString(fl.Summary + " " + fl.Title); m != "" {
		fl.YearLabel = strings.Join(strings.Fields(m), "")
	}
	return fl
}

func (q Query) matches(fl Filing) bool {
	if q.Company != "" {
		needle := strings.ToLower(q.Company)
		if !strings.Contains(strings.ToLower(fl.Title), needle) &&
			!strings.Contains(strings.ToLower(fl.Summary), needle) {
			return false
		}
	}
	if q.Year > 0 && !yearmatch.MatchesNSE(q.Year, fl.YearLabel+" "+fl.Summary, fl.URL) {
		return false
	}
	return true
}

// cleanHTML strips tags from an RSS description.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
