// Package yearmatch decides whether an exchange's fiscal-year label refers
// to a requested target year.
//
// Matching is substring based on purpose: both exchanges label the same
// period inconsistently across their own pages ("2023-24", "FY23/24",
// "2023"), so a strict date parser would reject real filings. The two
// exchanges use different conventions and are never reconciled here:
//
//	BSE  Y=2024 → labels containing "2024", "-25" or "/25"
//	NSE  Y=2024 → text or URL containing "2024" or "2024-25"
package yearmatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seenimoa/annualreport/pkg/models"
)

// Rule describes one exchange's label convention.
type Rule struct {
	Exchange    models.Exchange
	Description string
	Example     string
}

// Rules returns the per-exchange rule table.
func Rules() []Rule {
	return []Rule{
		{
			Exchange:    models.BSE,
			Description: `label contains "Y", or "-YY" / "/YY" where YY = last two digits of Y+1 (case-insensitive)`,
			Example:     `Y=2023 matches "2023-24", "FY23/24", "2023"; not "2022-23"`,
		},
		{
			Exchange:    models.NSE,
			Description: `link text or URL contains "Y" or the canonical label "Y-YY" (YY = last two digits of Y+1)`,
			Example:     `Y=2024 → canonical "2024-25"`,
		},
	}
}

// NextYearSuffix returns the zero-padded last two digits of year+1.
func NextYearSuffix(year int) string {
	return fmt.Sprintf("%02d", (year+1)%100)
}

// CanonicalLabel is the NSE period label for a target year, e.g. 2024 → "2024-25".
func CanonicalLabel(year int) string {
	return fmt.Sprintf("%d-%s", year, NextYearSuffix(year))
}

// Matches applies the exchange's rule to a single label.
// For NSE the label may be either the link text or its URL.
func Matches(year int, label string, ex models.Exchange) bool {
	switch ex {
	case models.BSE:
		return matchesBSE(year, label)
	case models.NSE:
		return matchesNSE(year, label)
	}
	return false
}

// MatchesNSE reports whether either the visible text or the URL of a link
// satisfies the NSE rule.
func MatchesNSE(year int, text, url string) bool {
	return matchesNSE(year, text) || matchesNSE(year, url)
}

// TODO: the "/YY" branch also fires on unrelated numbers such as dates
// ("12/24/2019"); anchoring it needs a sample of real BSE labels first.
func matchesBSE(year int, label string) bool {
	l := strings.ToLower(label)
	yy := NextYearSuffix(year)
	return strings.Contains(l, strconv.Itoa(year)) ||
		strings.Contains(l, "-"+yy) ||
		strings.Contains(l, "/"+yy)
}

func matchesNSE(year int, s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, strconv.Itoa(year)) ||
		strings.Contains(l, strings.ToLower(CanonicalLabel(year)))
}
