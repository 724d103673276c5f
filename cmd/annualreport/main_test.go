package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seenimoa/annualreport/pkg/models"
)

func TestFetchError(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []models.Outcome
		ctxErr   error
		wantErr  string
	}{
		{"all ok", []models.Outcome{{Success: true}}, nil, ""},
		{"not found is an answer", []models.Outcome{{Kind: models.FailureNotFound}, {Kind: models.FailureNoMatchingPeriod}}, nil, ""},
		{"fetch fault", []models.Outcome{{Success: true}, {Kind: models.FailureFetch}}, nil, "1 of 2 lookups failed"},
		{"interrupted", nil, context.Canceled, "fetch interrupted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fetchError(tt.outcomes, tt.ctxErr)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
	if err := fetchError(nil, context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("interrupted error should wrap context.Canceled, got %v", err)
	}
}

func TestOutcomeSummary(t *testing.T) {
	ok := outcomeSummary(models.Outcome{Exchange: models.BSE, Query: "TCS", Success: true, Path: "r.pdf", Size: 3})
	if !strings.HasPrefix(ok, "✔ BSE") || !strings.HasSuffix(ok, "r.pdf (3 bytes)") {
		t.Errorf("got %q", ok)
	}
	bad := outcomeSummary(models.Outcome{Exchange: models.NSE, Query: "X", Kind: models.FailureNotFound})
	if !strings.HasPrefix(bad, "✘ NSE") || !strings.HasSuffix(bad, "not_found") {
		t.Errorf("got %q", bad)
	}
}

func TestTwoDigits(t *testing.T) {
	for y, want := range map[int]string{2024: "24", 2000: "00", 2009: "09"} {
		if got := twoDigits(y); got != want {
			t.Errorf("twoDigits(%d) = %q, want %q", y, got, want)
		}
	}
}
