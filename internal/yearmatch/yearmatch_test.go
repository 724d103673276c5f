package yearmatch

import (
	"testing"

	"github.com/seenimoa/annualreport/pkg/models"
)

func TestMatchesBSE(t *testing.T) {
	tests := []struct {
		year  int
		label string
		want  bool
	}{
		{2023, "2023-24", true},
		{2023, "FY23/24", true},
		{2023, "2023", true},
		{2023, "2022-23", false},
		{2024, "2024-25", true},
		{2024, "fy 2023-24", false},
		{2024, "FY24/25", true},
		{2024, "2022-23", false},
		// Unanchored "/YY": a date with the right two digits matches.
		{2023, "12/24/2019", true},
		{2099, "2099-00", true},
		{2099, "FY99/00", true},
		{2023, "", false},
		{2023, "Annual Report", false},
	}
	for _, tt := range tests {
		got := Matches(tt.year, tt.label, models.BSE)
		if got != tt.want {
			t.Errorf("Matches(%d, %q, BSE) = %v, want %v", tt.year, tt.label, got, tt.want)
		}
	}
}

func TestMatchesBSEIsCaseInsensitive(t *testing.T) {
	if !Matches(2023, "fy2023", models.BSE) || !Matches(2023, "FY2023", models.BSE) {
		t.Fatal("expected case-insensitive match")
	}
}

func TestCanonicalLabel(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2024, "2024-25"},
		{2023, "2023-24"},
		{2099, "2099-00"},
		{2008, "2008-09"},
	}
	for _, tt := range tests {
		if got := CanonicalLabel(tt.year); got != tt.want {
			t.Errorf("CanonicalLabel(%d) = %q, want %q", tt.year, got, tt.want)
		}
	}
}

func TestMatchesNSE(t *testing.T) {
	tests := []struct {
		name string
		year int
		text string
		url  string
		want bool
	}{
		{"canonical in text", 2024, "Annual Report 2024-25", "https://x/a.pdf", true},
		{"year in url only", 2024, "Download", "https://nsearchives.nseindia.com/annual_reports/AR_2024_RELIANCE.pdf", true},
		{"previous period", 2024, "Annual Report 2023-24", "https://x/AR_23.pdf", false},
		{"nothing", 2024, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesNSE(tt.year, tt.text, tt.url); got != tt.want {
				t.Errorf("MatchesNSE(%d, %q, %q) = %v, want %v", tt.year, tt.text, tt.url, got, tt.want)
			}
		})
	}
}

func TestSameLabelDiffersAcrossExchanges(t *testing.T) {
	tests := []struct {
		year  int
		label string
		ex    models.Exchange
		want  bool
	}{
		// "2023-24" belongs to BSE 2023 and to neither exchange's 2024.
		{2023, "2023-24", models.BSE, true},
		{2024, "2023-24", models.BSE, false},
		{2024, "2023-24", models.NSE, false},
		{2023, "2023-24", models.NSE, true},
		// "FY24/25" only carries the BSE suffix form.
		{2024, "FY24/25", models.BSE, true},
		{2024, "FY24/25", models.NSE, false},
	}
	for _, tt := range tests {
		if got := Matches(tt.year, tt.label, tt.ex); got != tt.want {
			t.Errorf("Matches(%d, %q, %s) = %v, want %v", tt.year, tt.label, tt.ex, got, tt.want)
		}
	}
}

func TestMatchesUnknownExchange(t *testing.T) {
	if Matches(2024, "2024-25", models.Exchange("LSE")) {
		t.Fatal("unknown exchange must never match")
	}
}

func TestRules(t *testing.T) {
	rules := Rules()
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Exchange != models.BSE || rules[1].Exchange != models.NSE {
		t.Errorf("unexpected rule order: %v, %v", rules[0].Exchange, rules[1].Exchange)
	}
}
