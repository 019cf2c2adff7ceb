// Package highlight splits match snippets into highlighted and plain segments
// and renders them for HTML and terminal output.
package highlight

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"

	"github.com/limudai/limud/internal/match"
	"github.com/limudai/limud/internal/models"
)

// MarkClass is the class attribute placed on <mark> elements by HTML.
const MarkClass = "search-highlight"

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// markPolicy allows nothing but <mark class="search-highlight">.
func markPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("mark")
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^` + regexp.QuoteMeta(MarkClass) + `$`)).OnElements("mark")
		policy = p
	})
	return policy
}

// Segments splits snippet into segments, marking every occurrence of query
// found with the same rules as the match package. The snippet's own edges
// count as word boundaries, so for a context cut out of a longer text use
// WindowSegments instead.
func Segments(snippet, query string, opts models.SearchOptions) []models.Segment {
	return SegmentsFor(match.Compile(query, opts), snippet)
}

// SegmentsFor is Segments with an already compiled pattern.
func SegmentsFor(p *match.Pattern, snippet string) []models.Segment {
	locs := p.Locate(snippet)
	if len(locs) == 0 {
		if snippet == "" {
			return []models.Segment{}
		}
		return []models.Segment{{Text: snippet}}
	}
	out := make([]models.Segment, 0, 2*len(locs)+1)
	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			out = append(out, models.Segment{Text: snippet[pos:loc[0]]})
		}
		out = append(out, models.Segment{Text: snippet[loc[0]:loc[1]], Highlighted: true})
		pos = loc[1]
	}
	if pos < len(snippet) {
		out = append(out, models.Segment{Text: snippet[pos:]})
	}
	return out
}

// HTML renders segments as escaped text with highlighted parts wrapped in
// <mark>. The output is sanitized so nothing but the marks can be markup.
func HTML(segments []models.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Highlighted {
			b.WriteString(`<mark class="` + MarkClass + `">`)
			b.WriteString(html.EscapeString(s.Text))
			b.WriteString(`</mark>`)
			continue
		}
		b.WriteString(html.EscapeString(s.Text))
	}
	return markPolicy().Sanitize(b.String())
}

// DefaultStyle is the terminal style for highlighted text.
var DefaultStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))

// Terminal renders segments for a terminal, applying style to highlighted parts.
func Terminal(segments []models.Segment, style lipgloss.Style) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Highlighted {
			b.WriteString(style.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Plain joins the segment texts back into the original snippet.
func Plain(segments []models.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// SpanSegments splits a match's context at the match itself. Unlike Segments
// it needs no query, so it stays correct after the query has moved on.
func SpanSegments(m models.MatchSpan) []models.Segment {
	return WindowSegments(m, []models.MatchSpan{m})
}

// WindowSegments splits m's context, marking every span of all that lies
// entirely inside it. all is the full-text match list m came from, so the
// marks are exactly the reported matches and never a word cut off at the
// context edge.
func WindowSegments(m models.MatchSpan, all []models.MatchSpan) []models.Segment {
	if m.ContextText == "" {
		return []models.Segment{}
	}
	runes := []rune(m.ContextText)
	ranges := make([][2]int, 0, len(all))
	for _, o := range all {
		start := o.Index - m.ContextStart
		end := start + utf8.RuneCountInString(o.MatchedText)
		if start < 0 || end > len(runes) || start >= end {
			continue
		}
		ranges = append(ranges, [2]int{start, end})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })

	out := make([]models.Segment, 0, 2*len(ranges)+1)
	pos := 0
	for _, r := range ranges {
		if r[0] < pos {
			continue
		}
		if r[0] > pos {
			out = append(out, models.Segment{Text: string(runes[pos:r[0]])})
		}
		out = append(out, models.Segment{Text: string(runes[r[0]:r[1]]), Highlighted: true})
		pos = r[1]
	}
	if pos < len(runes) {
		out = append(out, models.Segment{Text: string(runes[pos:])})
	}
	return out
}
