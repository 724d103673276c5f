// Package utils provides small helpers shared by the CLI, the engine and the
// API: Indian-style number formatting, safe filenames, IST time, and the
// company name → ticker lookup table.
package utils

import (
	"strconv"
	"strings"
)

// FormatBytes renders a byte count with Indian digit grouping,
// e.g. 12345678 → "1,23,45,678 bytes".
func FormatBytes(n int64) string {
	return FormatIndianNumber(n) + " bytes"
}

// FormatIndianNumber formats an integer with Indian grouping (last 3, then 2s).
func FormatIndianNumber(n int64) string {
	sign, mag := "", uint64(n)
	if n < 0 {
		// two's complement negation keeps math.MinInt64 in range
		sign, mag = "-", -uint64(n)
	}
	s := strconv.FormatUint(mag, 10)
	if len(s) <= 3 {
		return sign + s
	}

	length := len(s)

	result := s[length-3:]
	remaining := s[:length-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + "," + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + "," + result
			remaining = ""
		}
	}

	return sign + result
}

// SplitList splits a comma or newline separated list, trimming blanks and
// dropping empty entries ("Reliance, , TCS" → ["Reliance", "TCS"]).
func SplitList(s string) []string {
	var out []string
	sep := func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }
	for _, part := range strings.FieldsFunc(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
