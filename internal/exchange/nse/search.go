package nse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/seenimoa/annualreport/internal/fetcher"
)

// searchClient talks to the NSE autocomplete API. NSE rejects API calls
// without the cookies its landing page sets, so each client owns a jar and
// seeds it before the first call. Clients are never shared between runs.
type searchClient struct {
	base      string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	seeded    bool
}

func newSearchClient(base, userAgent string, timeout time.Duration, rps float64) (*searchClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if rps <= 0 {
		rps = 3
	}
	return &searchClient{
		base:      strings.TrimRight(base, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout, Jar: jar},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// searchHit is one autocomplete entry.
type searchHit struct {
	Symbol      string `json:"symbol"`
	SymbolInfo  string `json:"symbol_info"`
	CompanyName string `json:"companyName"`
	Name        string `json:"name"`
}

// displayName prefers the long company name over the ticker.
func (h searchHit) displayName() string {
	for _, s := range []string{h.SymbolInfo, h.CompanyName, h.Name} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return h.Symbol
}

// seed visits the landing page so the jar holds the session cookies.
func (c *searchClient) seed(ctx context.Context) error {
	if c.seeded {
		return nil
	}
	if _, err := c.get(ctx, c.base+"/", "text/html,application/xhtml+xml"); err != nil {
		return fmt.Errorf("fetch NSE homepage for cookies: %w", err)
	}
	c.seeded = true
	return nil
}

// autocomplete returns the search hits for query, in API order.
func (c *searchClient) autocomplete(ctx context.Context, query string) ([]searchHit, error) {
	if err := c.seed(ctx); err != nil {
		return nil, err
	}
	u := c.base + "/api/search/autocomplete?q=" + url.QueryEscape(query)
	body, err := c.get(ctx, u, "application/json")
	if err != nil {
		return nil, fmt.Errorf("NSE autocomplete %q: %w", query, err)
	}
	hits, err := parseAutocomplete(body)
	if err != nil {
		return nil, fmt.Errorf("parse NSE autocomplete: %w", err)
	}
	return hits, nil
}

func (c *searchClient) get(ctx context.Context, u, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.base+"/")
	if accept == "application/json" {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck // drain body
		return nil, &fetcher.StatusError{URL: u, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

// parseAutocomplete accepts a bare list or an object carrying the list under
// "symbols" or "data". Entries without a symbol are dropped.
func parseAutocomplete(body []byte) ([]searchHit, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var hits []searchHit
	if body[0] == '[' {
		if err := json.Unmarshal(body, &hits); err != nil {
			return nil, err
		}
	} else {
		var obj struct {
			Symbols []searchHit `json:"symbols"`
			Data    []searchHit `json:"data"`
		}
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, err
		}
		hits = obj.Symbols
		if len(hits) == 0 {
			hits = obj.Data
		}
	}

	out := hits[:0]
	for _, h := range hits {
		if h.Symbol = strings.TrimSpace(h.Symbol); h.Symbol != "" {
			out = append(out, h)
		}
	}
	return out, nil
}
