// Package ngram turns label text into fixed-width character n-grams and
// scores documents against a query with a BM25-style function.
package ngram

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize applies NFKC, Unicode case folding and whitespace collapsing
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Tokenize returns every overlapping width-rune n-gram of the normalized
// text, repeats included. Non-empty text shorter than width yields itself.
func Tokenize(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	runes := []rune(Normalize(s))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= width {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-width+1)
	for i := 0; i+width <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+width]))
	}
	return grams
}

// Unique returns grams with duplicates removed, keeping first-seen order
func Unique(grams []string) []string {
	seen := make(map[string]bool, len(grams))
	out := grams[:0:0]
	for _, g := range grams {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}
