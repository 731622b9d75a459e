package util

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Quote wraps a search term in double quotes so the platform matches it as an exact phrase.
// Embedded quotes are dropped.
func Quote(term string) string {
	term = strings.ReplaceAll(NormalizeWhitespace(term), `"`, "")
	return `"` + term + `"`
}

// TrimMention strips a leading @ from a screen name.
func TrimMention(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}
