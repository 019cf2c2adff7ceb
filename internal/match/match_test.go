package match

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/limudai/limud/internal/models"
)

func TestFindMatches_LiteralMetacharacters(t *testing.T) {
	got := FindMatches("axb a.b", "a.b", models.SearchOptions{})
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(got), got)
	}
	if got[0].Index != 4 || got[0].MatchedText != "a.b" {
		t.Errorf("got %+v", got[0])
	}

	others := []struct {
		text, query string
		want        int
	}{
		{"I like C++ and C", "C++", 1},
		{"price: $5 (approx) $5", "$5", 2},
		{"a|b a b", "a|b", 1},
		{"[x] x", "[x]", 1},
		{"(.*) anything", ".*", 1},
	}
	for _, tt := range others {
		if n := len(FindMatches(tt.text, tt.query, models.SearchOptions{CaseSensitive: true})); n != tt.want {
			t.Errorf("FindMatches(%q, %q) = %d matches, want %d", tt.text, tt.query, n, tt.want)
		}
	}
}

func TestFindMatches_CaseSensitivity(t *testing.T) {
	text := "cat CAT Cat"
	insensitive := FindMatches(text, "Cat", models.SearchOptions{CaseSensitive: false})
	if len(insensitive) != 3 {
		t.Errorf("case-insensitive: expected 3 matches, got %d", len(insensitive))
	}
	for i, m := range insensitive {
		if m.MatchedText != text[m.Index:m.Index+3] {
			t.Errorf("match %d: MatchedText %q should be the literal substring", i, m.MatchedText)
		}
	}
	sensitive := FindMatches(text, "Cat", models.SearchOptions{CaseSensitive: true})
	if len(sensitive) != 1 {
		t.Fatalf("case-sensitive: expected 1 match, got %d", len(sensitive))
	}
	if sensitive[0].Index != 8 {
		t.Errorf("case-sensitive match at %d, want 8", sensitive[0].Index)
	}
}

func TestFindMatches_WholeWords(t *testing.T) {
	text := "cats cat concatenate"
	whole := FindMatches(text, "cat", models.SearchOptions{WholeWords: true})
	if len(whole) != 1 || whole[0].Index != 5 {
		t.Errorf("whole words: got %+v", whole)
	}
	partial := FindMatches(text, "cat", models.SearchOptions{WholeWords: false})
	if len(partial) != 3 {
		t.Errorf("substrings: expected 3 matches, got %d", len(partial))
	}
}

func TestFindMatches_WholeWordsRetriesAfterRejectedCandidate(t *testing.T) {
	got := FindMatches("aaa aa", "aa", models.SearchOptions{WholeWords: true})
	if len(got) != 1 || got[0].Index != 4 {
		t.Errorf("got %+v", got)
	}
}

func TestFindMatches_WholeWordsHebrew(t *testing.T) {
	text := "שלום, שלומית אמרה שלום"
	got := FindMatches(text, "שלום", models.SearchOptions{WholeWords: true})
	if len(got) != 2 {
		t.Fatalf("expected 2 whole-word matches, got %d: %+v", len(got), got)
	}
	if got[0].Index != 0 || got[1].Index != 18 {
		t.Errorf("indices = %d, %d; want 0, 18", got[0].Index, got[1].Index)
	}
	if n := len(FindMatches(text, "שלום", models.SearchOptions{})); n != 3 {
		t.Errorf("substring search: expected 3 matches, got %d", n)
	}
}

func TestFindMatches_NonOverlapping(t *testing.T) {
	got := FindMatches("aaaa", "aa", models.SearchOptions{})
	if len(got) != 2 || got[0].Index != 0 || got[1].Index != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestFindMatches_ContextWindow(t *testing.T) {
	text := strings.Repeat("a", 1000) + "needle" + strings.Repeat("a", 994)
	if len(text) != 2000 {
		t.Fatalf("fixture length %d", len(text))
	}
	got := FindMatches(text, "needle", models.SearchOptions{})
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	m := got[0]
	if m.Index != 1000 || m.ContextStart != 950 || m.ContextEnd != 1056 {
		t.Errorf("span = [%d, %d] at %d; want [950, 1056] at 1000", m.ContextStart, m.ContextEnd, m.Index)
	}
	if m.ContextText != text[950:1056] {
		t.Errorf("ContextText mismatch")
	}
}

func TestFindMatches_ContextClampedAtEdges(t *testing.T) {
	text := "needle" + strings.Repeat("b", 20) + "needle"
	got := FindMatches(text, "needle", models.SearchOptions{})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	for _, m := range got {
		if m.ContextStart != 0 || m.ContextEnd != len(text) {
			t.Errorf("span [%d, %d], want [0, %d]", m.ContextStart, m.ContextEnd, len(text))
		}
		if m.ContextText != text {
			t.Errorf("context should be the whole text, got %q", m.ContextText)
		}
	}
}

func TestFindMatches_CodePointOffsets(t *testing.T) {
	text := strings.Repeat("א", 60) + "מילה" + strings.Repeat("ב", 60)
	got := FindMatches(text, "מילה", models.SearchOptions{})
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	m := got[0]
	if m.Index != 60 || m.ContextStart != 10 || m.ContextEnd != 114 {
		t.Errorf("span [%d, %d] at %d; want [10, 114] at 60", m.ContextStart, m.ContextEnd, m.Index)
	}
	if n := utf8.RuneCountInString(m.ContextText); n != 104 {
		t.Errorf("context has %d code points, want 104", n)
	}
}

func TestFindMatches_Invariants(t *testing.T) {
	text := "The lecture covered photosynthesis. Photosynthesis needs light; PHOTOSYNTHESIS is key."
	total := utf8.RuneCountInString(text)
	for _, opts := range []models.SearchOptions{{}, {CaseSensitive: true}, {WholeWords: true}, {CaseSensitive: true, WholeWords: true}} {
		prev := -1
		for _, m := range FindMatches(text, "photosynthesis", opts) {
			if !(m.ContextStart <= m.Index && m.Index <= m.ContextEnd && m.ContextEnd <= total) {
				t.Errorf("opts %+v: invariant broken for %+v", opts, m)
			}
			if m.Index <= prev {
				t.Errorf("opts %+v: matches not in left-to-right order", opts)
			}
			prev = m.Index
		}
	}
}

func TestFindMatches_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		if got := FindMatches("some text", q, models.SearchOptions{}); len(got) != 0 {
			t.Errorf("query %q: expected no matches, got %d", q, len(got))
		}
	}
	if Compile(" ", models.SearchOptions{}) != nil {
		t.Error("blank query should compile to nil")
	}
	var p *Pattern
	if p.Locate("x") != nil {
		t.Error("nil pattern should locate nothing")
	}
}
