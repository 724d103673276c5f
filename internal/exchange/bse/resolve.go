package bse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/seenimoa/annualreport/internal/browser"
	"github.com/seenimoa/annualreport/pkg/models"
)

// Placeholders used when only the scrip code is known. The site routes on
// the code segment and tolerates any slug and symbol.
const (
	placeholderSlug   = "company"
	placeholderSymbol = "symbol"
)

var (
	// stockPagePattern captures slug, symbol and scrip code from a stock page URL.
	stockPagePattern = regexp.MustCompile(`(?i)/stock-share-price/([^/?#]+)/([^/?#]+)/(\d{6})(?:/|$|[?#])`)
	scripCodePattern = regexp.MustCompile(`^\d{6}$`)
	sixDigits        = regexp.MustCompile(`\b\d{6}\b`)
)

// ParseStockURL extracts an identity from a BSE stock page URL. The display
// name falls back to the symbol since the URL carries nothing better.
func ParseStockURL(raw string) (*models.Identity, bool) {
	m := stockPagePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return &models.Identity{
		Exchange:    models.BSE,
		Slug:        m[1],
		Symbol:      m[2],
		Code:        m[3],
		DisplayName: m[2],
	}, true
}

// identityFromCode builds an identity from a bare scrip code.
func identityFromCode(code string) *models.Identity {
	return &models.Identity{
		Exchange:    models.BSE,
		Code:        code,
		Slug:        placeholderSlug,
		Symbol:      placeholderSymbol,
		DisplayName: code,
	}
}

// Resolve turns a company query into a BSE identity. URLs and bare scrip
// codes are parsed without touching the network; anything else goes through
// the site's smart search.
func (p *Pipeline) Resolve(ctx context.Context, s browser.Session, query string) (*models.Identity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", models.ErrCompanyNotFound)
	}
	if id, ok := ParseStockURL(query); ok {
		return id, nil
	}
	if scripCodePattern.MatchString(query) {
		return identityFromCode(query), nil
	}
	return p.search(ctx, s, query)
}

// search types the query into the quote search box, then reads the first
// suggestion or, when none appears, submits and parses the landing URL.
func (p *Pipeline) search(ctx context.Context, s browser.Session, query string) (*models.Identity, error) {
	searchURL := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.SearchPath
	if err := s.Navigate(ctx, searchURL); err != nil {
		return nil, err
	}
	if err := s.TypeSlowly(ctx, p.cfg.SearchInput, query, p.keystroke); err != nil {
		return nil, err
	}

	if err := s.WaitVisible(ctx, p.cfg.SuggestionSelector, p.cfg.SuggestionTimeout); err == nil {
		page, err := s.HTML(ctx)
		if err != nil {
			return nil, err
		}
		if id, ok := parseSuggestion(page, p.cfg.SuggestionSelector, query); ok {
			return id, nil
		}
		p.log.Debug("first suggestion carries no scrip code", zap.String("query", query))
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := s.PressEnter(ctx, p.cfg.SearchInput); err != nil {
		return nil, err
	}
	if err := browser.Settle(ctx, p.cfg.SettleDelay); err != nil {
		return nil, err
	}
	landing, err := s.Location(ctx)
	if err != nil {
		return nil, err
	}
	if id, ok := ParseStockURL(landing); ok {
		id.DisplayName = query
		return id, nil
	}
	return nil, fmt.Errorf("no BSE match for %q: %w", query, models.ErrCompanyNotFound)
}

// parseSuggestion reads the first suggestion entry. The scrip code is the
// first six-digit number in its text and the display name its first line.
// A stock page link inside the entry supplies the real slug and symbol.
func parseSuggestion(page, selector, query string) (*models.Identity, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, false
	}
	first := doc.Find(selector).First()
	if first.Length() == 0 {
		return nil, false
	}

	lines := textLines(first)
	code := sixDigits.FindString(strings.Join(lines, "\n"))
	if code == "" {
		return nil, false
	}

	id := identityFromCode(code)
	id.DisplayName = query
	if len(lines) > 0 {
		id.DisplayName = lines[0]
	}

	first.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		linked, ok := ParseStockURL(href)
		if !ok || linked.Code != code {
			return true
		}
		id.Slug, id.Symbol = linked.Slug, linked.Symbol
		return false
	})
	return id, true
}

// breakingElements end a visual line.
var breakingElements = map[string]bool{
	"br": true, "div": true, "p": true, "li": true, "tr": true,
}

// textLines returns the non-empty visual lines of the selection's text.
func textLines(sel *goquery.Selection) []string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		brk := n.Type == html.ElementNode && breakingElements[n.Data]
		if brk {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if brk {
			b.WriteByte('\n')
		}
	}
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
