// Package highlight annotates raw note text with editor styles for markdown-like tokens.
//
// It is a lexical pass, not a markdown parser: each rule's pattern runs over the
// original text, and where rules overlap the later rule decides the style.
package highlight

import (
	"regexp"

	"github.com/starford/quire/internal/models"
)

// Style describes how the editor should draw a run of text.
type Style struct {
	Name       string  `json:"name"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Monospace  bool    `json:"monospace,omitempty"`
	Size       float64 `json:"size,omitempty"` // points; 0 keeps the body size
	Color      string  `json:"color,omitempty"`
	Background string  `json:"background,omitempty"`
}

// Rule maps a pattern to the style applied to each of its matches.
type Rule struct {
	Pattern *regexp.Regexp
	Style   Style
}

// Run is a styled range of the annotated text.
type Run struct {
	models.Span
	Style Style `json:"style"`
}

// Annotation is the highlighter output: the untouched text plus its styled runs.
// Runs are ordered, non-overlapping and cover only styled text.
type Annotation struct {
	Text string `json:"text"`
	Runs []Run  `json:"runs"`
}

// Built-in styles, in rule order.
var (
	BoldStyle       = Style{Name: "bold", Bold: true}
	ItalicStyle     = Style{Name: "italic", Italic: true}
	HeadingStyle    = Style{Name: "heading", Bold: true, Size: 20, Color: "#1E6FD9"}
	CodeBlockStyle  = Style{Name: "code_block", Monospace: true, Background: "#F2F2F2"}
	InlineCodeStyle = Style{Name: "inline_code", Monospace: true, Color: "#C7254E", Background: "#F9F2F4"}
)

// Rules is the fixed rule list. Order matters: later rules win on overlap.
var Rules = []Rule{
	{Pattern: regexp.MustCompile(`\*\*(.+?)\*\*`), Style: BoldStyle},
	{Pattern: regexp.MustCompile(`\*(.+?)\*`), Style: ItalicStyle},
	{Pattern: regexp.MustCompile(`(?m)^#{1,6} .*$`), Style: HeadingStyle},
	{Pattern: regexp.MustCompile("(?s)```.*?```"), Style: CodeBlockStyle},
	{Pattern: regexp.MustCompile("`[^`\n]+`"), Style: InlineCodeStyle},
}

// Highlight annotates text using Rules.
func Highlight(text string) Annotation {
	return HighlightWith(text, Rules)
}

// HighlightWith annotates text with a caller-supplied rule list.
func HighlightWith(text string, rules []Rule) Annotation {
	// owner[i] is 1 + index of the last rule covering byte i, or 0.
	owner := make([]int, len(text))
	for ri, rule := range rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				owner[i] = ri + 1
			}
		}
	}

	runs := []Run{}
	for i := 0; i < len(owner); {
		if owner[i] == 0 {
			i++
			continue
		}
		j := i + 1
		for j < len(owner) && owner[j] == owner[i] {
			j++
		}
		runs = append(runs, Run{
			Span:  models.Span{Start: i, End: j},
			Style: rules[owner[i]-1].Style,
		})
		i = j
	}
	return Annotation{Text: text, Runs: runs}
}

// StyleAt returns the style of the byte at offset and whether it is styled at all.
func (a Annotation) StyleAt(offset int) (Style, bool) {
	for _, r := range a.Runs {
		if offset >= r.Start && offset < r.End {
			return r.Style, true
		}
		if r.Start > offset {
			break
		}
	}
	return Style{}, false
}
