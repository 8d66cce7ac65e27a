package search

import (
	"reflect"
	"strings"
	"testing"

	"github.com/starford/quire/internal/models"
)

// naiveStarts is a reference scan: lower-case both sides (ASCII-only inputs)
// and step past each match.
func naiveStarts(content, query string) []int {
	out := []int{}
	if query == "" {
		return out
	}
	c, q := strings.ToLower(content), strings.ToLower(query)
	for i := 0; i+len(q) <= len(c); {
		if c[i:i+len(q)] == q {
			out = append(out, i)
			i += len(q)
			continue
		}
		i++
	}
	return out
}

func TestFindAll(t *testing.T) {
	cases := []struct {
		name    string
		content string
		query   string
		want    []Span
	}{
		{"empty query", "anything", "", []Span{}},
		{"no match", "hello world", "xyz", []Span{}},
		{"case insensitive", "Go go GO", "go", []Span{{Start: 0, End: 2}, {Start: 3, End: 5}, {Start: 6, End: 8}}},
		{"non overlapping", "aaaa", "aa", []Span{{Start: 0, End: 2}, {Start: 2, End: 4}}},
		{"overlap skipped", "aaa", "aa", []Span{{Start: 0, End: 2}}},
		{"unicode", "Ärger und ärger", "ÄRGER", []Span{{Start: 0, End: 6}, {Start: 11, End: 17}}},
		{"query longer than content", "ab", "abc", []Span{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FindAll(tc.content, tc.query)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("FindAll(%q, %q) = %v, want %v", tc.content, tc.query, got, tc.want)
			}
		})
	}
}

func TestFindAll_MatchesNaiveScan(t *testing.T) {
	contents := []string{
		"The quick brown fox jumps over the lazy dog. THE END.",
		"abababab",
		"mississippi",
		"",
		"no needles here",
	}
	queries := []string{"the", "aba", "ss", "issi", "e", "x", "Needles"}
	for _, c := range contents {
		for _, q := range queries {
			var starts []int
			for _, sp := range FindAll(c, q) {
				starts = append(starts, sp.Start)
			}
			if starts == nil {
				starts = []int{}
			}
			if want := naiveStarts(c, q); !reflect.DeepEqual(starts, want) {
				t.Errorf("FindAll(%q, %q) starts = %v, want %v", c, q, starts, want)
			}
		}
	}
}

func TestReplaceAll(t *testing.T) {
	got := ReplaceAll("Cat, cat and CAT", "cat", "dog")
	if got != "dog, dog and dog" {
		t.Errorf("ReplaceAll = %q", got)
	}
	if got := ReplaceAll("unchanged", "", "x"); got != "unchanged" {
		t.Errorf("empty query should not change content, got %q", got)
	}
	if got := ReplaceAll("a.b.c", ".", "*"); got != "a*b*c" {
		t.Errorf("query must be literal, got %q", got)
	}
}

func TestReplaceAll_ThenFindNothing(t *testing.T) {
	contents := []string{"Todo: buy milk. TODO: call mom. todo", "nothing", "tododo"}
	for _, c := range contents {
		out := ReplaceAll(c, "todo", "done")
		if n := Count(out, "todo"); n != 0 {
			t.Errorf("after ReplaceAll(%q) found %d occurrences in %q", c, n, out)
		}
	}
}

func TestReplaceAllOccurrences_DoesNotMutate(t *testing.T) {
	n := models.Note{ID: "1", Title: "t", Content: "red Red"}
	out := ReplaceAllOccurrences(n, "red", "blue")
	if n.Content != "red Red" {
		t.Errorf("input mutated: %q", n.Content)
	}
	if out.Content != "blue blue" || out.ID != "1" || out.Title != "t" {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestReplaceNext(t *testing.T) {
	cases := []struct {
		content, search, repl, want string
	}{
		{"one One one", "ONE", "1", "1 One one"},
		{"nothing here", "zzz", "x", "nothing here"},
		{"keep", "", "x", "keep"},
	}
	for _, tc := range cases {
		if got := ReplaceNext(tc.content, tc.search, tc.repl); got != tc.want {
			t.Errorf("ReplaceNext(%q, %q, %q) = %q, want %q", tc.content, tc.search, tc.repl, got, tc.want)
		}
	}
}

func TestFindNext_WrapsAround(t *testing.T) {
	content := "foo bar foo baz"
	sp, ok := FindNext(content, "foo", nil)
	if !ok || sp != (Span{Start: 0, End: 3}) {
		t.Fatalf("first = %v %v", sp, ok)
	}
	sp, ok = FindNext(content, "foo", &sp)
	if !ok || sp != (Span{Start: 8, End: 11}) {
		t.Fatalf("second = %v %v", sp, ok)
	}
	sp, ok = FindNext(content, "foo", &sp)
	if !ok || sp != (Span{Start: 0, End: 3}) {
		t.Fatalf("wrapped = %v %v", sp, ok)
	}
	if _, ok := FindNext(content, "qux", nil); ok {
		t.Error("expected no match")
	}
	if _, ok := FindNext(content, "", nil); ok {
		t.Error("empty query should not match")
	}
}

func TestReplaceAll_FoldedMatchShorterThanQuery(t *testing.T) {
	// U+212A KELVIN SIGN folds to 'k' but is three bytes long.
	got := ReplaceAll("kk", "K", "")
	if got != "" {
		t.Errorf("ReplaceAll = %q, want empty", got)
	}
	if spans := FindAll("kK", "K"); len(spans) != 2 || spans[1] != (Span{Start: 1, End: 2}) {
		t.Errorf("FindAll = %+v", spans)
	}
}
