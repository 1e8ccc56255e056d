// Package textmatch checks whether quoted spans really occur in a source
// document despite whitespace and line-wrapping differences.
package textmatch

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minTokenRunes    = 2
	minFuzzyTokens   = 3
	fuzzyHitRatio    = 0.7
	ideographicSpace = "　"
)

var whitespace = regexp.MustCompile(`\s+`)

// Normalize canonicalizes whitespace: full-width spaces and line breaks become
// plain spaces, runs collapse to one space, and the ends are trimmed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, ideographicSpace, " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = whitespace.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// QuoteInText reports whether quote occurs in text, either verbatim after
// normalization or, for quotes of at least three tokens, with at least 70% of
// the tokens present.
func QuoteInText(quote, text string) bool {
	if quote == "" || text == "" {
		return false
	}

	q := Normalize(quote)
	t := Normalize(text)
	if q == "" || t == "" {
		return false
	}

	if strings.Contains(t, q) {
		return true
	}

	tokens := Tokens(q)
	if len(tokens) < minFuzzyTokens {
		return false
	}

	hits := 0
	for _, tok := range tokens {
		if strings.Contains(t, tok) {
			hits++
		}
	}

	return float64(hits)/float64(len(tokens)) >= fuzzyHitRatio
}

// Tokens splits on whitespace and keeps tokens of at least two characters.
func Tokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ContainsEither reports whether one of the normalized strings contains the
// other. Empty strings never match.
func ContainsEither(a, b string) bool {
	a = Normalize(a)
	b = Normalize(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Truncate cuts s to at most limit runes and reports whether it did.
func Truncate(s string, limit int) (string, bool) {
	if limit < 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}
