// Package models defines the core data structures shared by the exchange
// pipelines, the report engine and its callers.
package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Exchange identifies one of the two supported stock exchanges.
type Exchange string

const (
	BSE Exchange = "BSE"
	NSE Exchange = "NSE"
)

// Exchanges lists every supported exchange in display order.
var Exchanges = []Exchange{BSE, NSE}

func (e Exchange) String() string { return string(e) }

// ParseExchange converts user input ("bse", "NSE ") into an Exchange.
func ParseExchange(s string) (Exchange, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BSE":
		return BSE, nil
	case "NSE":
		return NSE, nil
	}
	return "", fmt.Errorf("unknown exchange %q (want bse or nse)", s)
}

// ParseExchanges expands "both" (or an empty string) into every exchange.
func ParseExchanges(s string) ([]Exchange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "all":
		return Exchanges, nil
	}
	ex, err := ParseExchange(s)
	if err != nil {
		return nil, err
	}
	return []Exchange{ex}, nil
}

// Identity is the exchange-specific identifier a company query resolves to.
// BSE fills every field; NSE only fills Symbol and DisplayName.
type Identity struct {
	Exchange    Exchange `json:"exchange"`
	Code        string   `json:"code,omitempty"`   // BSE scrip code, e.g. "500325"
	Symbol      string   `json:"symbol,omitempty"` // e.g. "RELIANCE"
	Slug        string   `json:"slug,omitempty"`   // BSE URL slug, e.g. "reliance-industries"
	DisplayName string   `json:"display_name"`
}

// Candidate is one (year label, download link) pair scraped from a filings page.
type Candidate struct {
	YearLabel string `json:"year_label"`
	URL       string `json:"url"`
}

// FailureKind classifies why a pipeline run did not produce a file.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNotFound
	FailureNoMatchingPeriod
	FailureNavigation
	FailureFetch
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNotFound:
		return "not_found"
	case FailureNoMatchingPeriod:
		return "no_matching_period"
	case FailureNavigation:
		return "navigation"
	case FailureFetch:
		return "fetch"
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// MarshalText renders the kind by name in JSON output.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind rendered by MarshalText.
func (k *FailureKind) UnmarshalText(text []byte) error {
	for c := FailureNone; c <= FailureFetch; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown failure kind %q", text)
}

// Fatal reports whether the kind is a fault rather than a normal "nothing
// to download" result.
func (k FailureKind) Fatal() bool {
	return k == FailureNavigation || k == FailureFetch
}

// --- Sentinel errors ---

// ErrCompanyNotFound is returned when a query resolves to no exchange identity.
var ErrCompanyNotFound = errors.New("company not found")

// ErrNoMatchingPeriod is returned when no filing matches the target year.
var ErrNoMatchingPeriod = errors.New("no report for target year")

// PipelineError carries the failure kind of a pipeline run with its cause.
type PipelineError struct {
	Kind     FailureKind
	Exchange Exchange
	Cause    error
}

func (e *PipelineError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Exchange, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Exchange, e.Kind, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// Outcome is the terminal result of one exchange invocation.
type Outcome struct {
	Exchange Exchange    `json:"exchange"`
	Query    string      `json:"query"`
	Year     int         `json:"year"`
	Identity *Identity   `json:"identity,omitempty"`
	Success  bool        `json:"success"`
	Path     string      `json:"path,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Kind     FailureKind `json:"kind"`
	Cause    error       `json:"-"`
}

// Err returns the outcome as a *PipelineError, or nil on success.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return &PipelineError{Kind: o.Kind, Exchange: o.Exchange, Cause: o.Cause}
}

// Detail is a one-line description of the outcome for logs and API output.
func (o Outcome) Detail() string {
	if o.Success {
		return fmt.Sprintf("%s (%d bytes)", o.Path, o.Size)
	}
	if o.Cause != nil {
		return o.Cause.Error()
	}
	return o.Kind.String()
}

// Narrator receives human-readable progress lines in causal order.
// Implementations own retention; a nil Narrator discards events.
type Narrator func(msg string)

// Sayf formats and emits a message.
func (n Narrator) Sayf(format string, args ...any) {
	if n != nil {
		n(fmt.Sprintf(format, args...))
	}
}

// Synchronized wraps n so that concurrent callers never interleave.
func (n Narrator) Synchronized() Narrator {
	if n == nil {
		return nil
	}
	var mu sync.Mutex
	return func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		n(msg)
	}
}
