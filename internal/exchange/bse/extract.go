package bse

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/annualreport/internal/exchange"
	"github.com/seenimoa/annualreport/pkg/models"
)

// reportLinkMarkers identify annual report documents among a row's links.
var reportLinkMarkers = []string{".pdf", "/bseplus/annualreport/", "/histannr/"}

// FilingsURL returns the annual reports page for an identity.
func FilingsURL(baseURL string, id *models.Identity) string {
	return fmt.Sprintf("%s/stock-share-price/%s/%s/%s/financials-annual-reports/",
		strings.TrimRight(baseURL, "/"), id.Slug, id.Symbol, id.Code)
}

// ExtractCandidates reads the annual reports table. It yields at most one
// candidate per row, in row order, with links resolved against pageURL.
func ExtractCandidates(page, pageURL string) ([]models.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse filings page: %w", err)
	}

	table := reportTable(doc)
	if table == nil {
		return nil, nil
	}

	base, _ := url.Parse(pageURL)
	var out []models.Candidate
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if !row.Closest("table").IsSelection(table) {
			return
		}
		label := strings.TrimSpace(row.Find("td").First().Text())
		if label == "" || !strings.ContainsFunc(label, unicode.IsDigit) {
			return
		}
		row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if !isReportLink(href) {
				return true
			}
			out = append(out, models.Candidate{
				YearLabel: strings.Join(strings.Fields(label), " "),
				URL:       exchange.AbsoluteURL(base, href),
			})
			return false
		})
	})
	return out, nil
}

// reportTable picks the table whose header mentions "Year", falling back to
// the first table on the page.
func reportTable(doc *goquery.Document) *goquery.Selection {
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil
	}
	var found *goquery.Selection
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		header := t.Find("thead")
		if header.Length() == 0 {
			header = t.Find("tr").First()
		}
		if strings.Contains(strings.ToLower(header.Text()), "year") {
			found = t
			return false
		}
		return true
	})
	if found == nil {
		found = tables.First()
	}
	return found
}

func isReportLink(href string) bool {
	h := strings.ToLower(href)
	for _, m := range reportLinkMarkers {
		if strings.Contains(h, m) {
			return true
		}
	}
	return false
}
