package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// unsafeFilenameChars matches everything outside the safe filename set:
// letters, digits, space, dot, underscore, hyphen, ampersand and parentheses.
var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N} ._\-&()]`)

// SanitizeFilename replaces every unsafe character with "_".
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// ReportFilename builds "{EXCHANGE}_{displayName}_{year}_AnnualReport.pdf"
// with the whole name sanitized.
func ReportFilename(exchange, displayName string, year int) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "UNKNOWN"
	}
	return SanitizeFilename(fmt.Sprintf("%s_%s_%d_AnnualReport.pdf", exchange, name, year))
}
