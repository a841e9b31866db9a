// Package command implements the Unicode-aware command-name canonical form,
// tokenisation, and the lenient typed argument parser command dispatch uses.
package command

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Prefixes is the fixed set of leading characters that make a message a
// command attempt.
const Prefixes = ".。!！"

// MaxCommandLength bounds how much of a command attempt's remainder is
// canonicalised and tokenised, a safety margin against pathological input.
const MaxCommandLength = 110

var foldCaser = cases.Fold()

var whitespaceOrUnderscoreRun = regexp.MustCompile(`[\s_]+`)

// IsCommandAttempt reports whether a message's first rune belongs to Prefixes.
func IsCommandAttempt(text string) bool {
	if text == "" {
		return false
	}
	r := []rune(text)[0]
	return strings.ContainsRune(Prefixes, r)
}

// Normalize canonicalises a command attempt's remainder in the exact order
// §4.F requires: trim, NFD, case-fold, NFKD, case-fold again, NFKD again,
// drop combining marks, collapse whitespace/underscore runs to one
// underscore.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	s = norm.NFD.String(s)
	s = foldCaser.String(s)
	s = norm.NFKD.String(s)
	s = foldCaser.String(s)
	s = norm.NFKD.String(s)
	s = stripCombiningMarks(s)
	s = whitespaceOrUnderscoreRun.ReplaceAllString(s, "_")
	return s
}

func stripCombiningMarks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsMark(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateRunes returns the first n runes of s (fewer if s is shorter).
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
