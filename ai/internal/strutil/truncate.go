// Package strutil provides rune-safe string helpers for the ai packages.
package strutil

import "strings"

// Truncate cuts s to maxLen runes and marks the cut with "...".
// Returns empty string if maxLen <= 0.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Cut cuts s to at most maxLen runes without a marker.
func Cut(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// CollapseSpace joins the whitespace-separated fields of s with single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
