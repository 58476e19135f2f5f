// Package normalize converts raw page text into typed, canonical values.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
)

// CleanText applies NFKC normalization, drops zero-width characters and
// collapses runs of whitespace.
func CleanText(s string) string {
	s = norm.NFKC.String(s)
	s = invisible.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most n runes. n <= 0 leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
