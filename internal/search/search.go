// Package search implements literal, case-insensitive find and replace over note content.
//
// Offsets are byte offsets into the UTF-8 content. Matching compares rune by rune
// using Unicode simple case folding, so a match never splits a rune.
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/quire/internal/models"
)

// Span is a match range within the searched content.
type Span = models.Span

// FindAll returns every non-overlapping occurrence of query in content, left to right.
// An empty query matches nothing.
func FindAll(content, query string) []Span {
	if query == "" {
		return []Span{}
	}
	out := []Span{}
	for i := 0; i < len(content); {
		if end, ok := matchAt(content, i, query); ok {
			out = append(out, Span{Start: i, End: end})
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(content[i:])
		i += size
	}
	return out
}

// Count returns len(FindAll(content, query)).
func Count(content, query string) int {
	return len(FindAll(content, query))
}

// FindAllOccurrences searches the note's content.
func FindAllOccurrences(n models.Note, query string) []Span {
	return FindAll(n.Content, query)
}

// ReplaceAll replaces every occurrence reported by FindAll with replacement.
func ReplaceAll(content, query, replacement string) string {
	spans := FindAll(content, query)
	if len(spans) == 0 {
		return content
	}
	var b strings.Builder
	// Folded matches can be shorter than query, so size from the spans.
	matched := 0
	for _, sp := range spans {
		matched += sp.Len()
	}
	b.Grow(len(content) - matched + len(spans)*len(replacement))
	last := 0
	for _, sp := range spans {
		b.WriteString(content[last:sp.Start])
		b.WriteString(replacement)
		last = sp.End
	}
	b.WriteString(content[last:])
	return b.String()
}

// ReplaceAllOccurrences returns a copy of n with every occurrence replaced.
// n itself is left untouched and nothing is persisted.
func ReplaceAllOccurrences(n models.Note, query, replacement string) models.Note {
	out := n
	out.Content = ReplaceAll(n.Content, query, replacement)
	return out
}

// ReplaceNext replaces only the first occurrence of search in content.
// Content is returned unchanged when search is empty or absent.
func ReplaceNext(content, search, replacement string) string {
	sp, ok := scanFrom(content, search, 0)
	if !ok {
		return content
	}
	return content[:sp.Start] + replacement + content[sp.End:]
}

// FindNext returns the first occurrence starting at or after the end of the
// current selection, wrapping to the beginning. A nil selection searches from
// the start of content.
func FindNext(content, query string, after *Span) (Span, bool) {
	from := 0
	if after != nil && after.End >= 0 && after.End <= len(content) {
		from = after.End
	}
	if sp, ok := scanFrom(content, query, from); ok {
		return sp, true
	}
	if from == 0 {
		return Span{}, false
	}
	return scanFrom(content, query, 0)
}

func scanFrom(content, query string, from int) (Span, bool) {
	if query == "" {
		return Span{}, false
	}
	// Step back to a rune boundary if a selection ended mid-rune.
	for from > 0 && from < len(content) && !utf8.RuneStart(content[from]) {
		from--
	}
	for i := from; i < len(content); {
		if end, ok := matchAt(content, i, query); ok {
			return Span{Start: i, End: end}, true
		}
		_, size := utf8.DecodeRuneInString(content[i:])
		i += size
	}
	return Span{}, false
}

// matchAt reports whether query matches content starting at byte i and, if so,
// where the match ends.
func matchAt(content string, i int, query string) (int, bool) {
	j := i
	for _, qr := range query {
		if j >= len(content) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(content[j:])
		if !foldEqual(r, qr) {
			return 0, false
		}
		j += size
	}
	return j, true
}

func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}
