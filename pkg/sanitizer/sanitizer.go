// Package sanitizer normalizes free-text customer input before it is
// validated and persisted. Strategies compose into pipelines so each
// field declares exactly the cleanup it needs.
package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reKeepLettersDigits = regexp.MustCompile(`[^0-9\p{L} ]+`)
	reMultiSpace        = regexp.MustCompile(` +`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func stripSymbols(s string) string {
	return reKeepLettersDigits.ReplaceAllString(s, " ")
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(reMultiSpace.ReplaceAllString(s, " "))
}

// SanitizeCustomerName keeps letters, digits and single spaces; drops
// everything else.
func SanitizeCustomerName(input string) string {
	p := Pipeline{
		trim,
		stripSymbols,
		collapseSpaces,
	}
	return p.Apply(input)
}

// SanitizeReason trims and collapses whitespace but keeps punctuation;
// cancellation reasons are free text shown back to owners.
func SanitizeReason(input string) string {
	p := Pipeline{
		trim,
		collapseSpaces,
	}
	return p.Apply(input)
}
