package utils

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// fuzzyCutoff is the minimum similarity for a fuzzy alias hit.
const fuzzyCutoff = 0.6

// companyAliases maps lower-cased company names and common shorthands to
// NSE ticker symbols.
var companyAliases = map[string]string{
	"reliance":                  "RELIANCE",
	"reliance industries":       "RELIANCE",
	"ril":                       "RELIANCE",
	"tcs":                       "TCS",
	"tata consultancy services": "TCS",
	"infosys":                   "INFY",
	"infy":                      "INFY",
	"hcl":                       "HCLTECH",
	"hcl tech":                  "HCLTECH",
	"hcl technologies":          "HCLTECH",
	"hdfc bank":                 "HDFCBANK",
	"icici bank":                "ICICIBANK",
	"sbi":                       "SBIN",
	"state bank of india":       "SBIN",
	"airtel":                    "BHARTIARTL",
	"bharti airtel":             "BHARTIARTL",
	"bajaj finance":             "BAJFINANCE",
	"itc":                       "ITC",
	"l&t":                       "LT",
	"larsen & toubro":           "LT",
	"tata motors":               "TATAMOTORS",
	"tata steel":                "TATASTEEL",
	"wipro":                     "WIPRO",
	"maruti":                    "MARUTI",
	"maruti suzuki":             "MARUTI",
	"kotak":                     "KOTAKBANK",
	"kotak mahindra bank":       "KOTAKBANK",
	"axis bank":                 "AXISBANK",
	"sun pharma":                "SUNPHARMA",
	"asian paints":              "ASIANPAINT",
	"titan":                     "TITAN",
	"nestle":                    "NESTLEIND",
	"nestle india":              "NESTLEIND",
	"ultratech":                 "ULTRACEMCO",
	"ultratech cement":          "ULTRACEMCO",
	"power grid":                "POWERGRID",
	"ntpc":                      "NTPC",
	"tech mahindra":             "TECHM",
	"mahindra":                  "M&M",
	"mahindra & mahindra":       "M&M",
	"adani enterprises":         "ADANIENT",
	"hindustan unilever":        "HINDUNILVR",
	"hul":                       "HINDUNILVR",
	"dr reddy":                  "DRREDDY",
	"cipla":                     "CIPLA",
	"coal india":                "COALINDIA",
	"ongc":                      "ONGC",
	"indian oil":                "IOC",
	"bpcl":                      "BPCL",
}

// aliasKeys is companyAliases' keys in sorted order so fuzzy ties resolve
// deterministically.
var aliasKeys = func() []string {
	keys := make([]string, 0, len(companyAliases))
	for k := range companyAliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// ResolveSymbol returns a best-guess NSE ticker for a company name: an exact
// alias hit, else the closest alias with similarity >= 0.6, else the input
// upper-cased.
func ResolveSymbol(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if sym, ok := companyAliases[key]; ok {
		return sym
	}
	if best, ok := closestAlias(key); ok {
		return companyAliases[best]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

func closestAlias(key string) (string, bool) {
	best, bestScore := "", 0.0
	for _, alias := range aliasKeys {
		if s := Similarity(key, alias); s > bestScore {
			best, bestScore = alias, s
		}
	}
	return best, bestScore >= fuzzyCutoff
}

// Similarity is difflib's SequenceMatcher ratio 2*M/T over the characters
// of a and b, the score behind Python's get_close_matches.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
