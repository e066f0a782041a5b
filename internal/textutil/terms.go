package textutil

import (
	"strings"
	"unicode"
)

// MinTermLength is the shortest run of letters or digits kept as a term.
const MinTermLength = 3

var stopWords = map[string]struct{}{
	"and": {}, "are": {}, "but": {}, "can": {}, "for": {}, "from": {},
	"has": {}, "have": {}, "into": {}, "its": {}, "not": {}, "that": {},
	"the": {}, "their": {}, "then": {}, "there": {}, "these": {}, "this": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// Terms splits text into lowercase search terms in order of appearance.
// Repeated terms are kept so callers can count frequencies.
func Terms(text string) []string {
	var terms []string
	for _, word := range strings.FieldsFunc(text, isSeparator) {
		parts := identifierParts(word)
		for _, part := range parts {
			terms = appendTerm(terms, part)
		}
		if len(parts) > 1 {
			terms = appendTerm(terms, strings.Join(parts, ""))
		}
	}
	return terms
}

func appendTerm(terms []string, raw string) []string {
	term := strings.ToLower(raw)
	if len([]rune(term)) < MinTermLength {
		return terms
	}
	if _, stop := stopWords[term]; stop {
		return terms
	}
	return append(terms, term)
}

// isSeparator keeps letters and digits together. Underscores separate so
// snake_case names split into their parts.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// identifierParts splits a camelCase word at lower-to-upper boundaries and
// before the last capital of an acronym run ("HTTPServer" → HTTP, Server).
func identifierParts(word string) []string {
	runes := []rune(word)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur)
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}
