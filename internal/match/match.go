// Package match finds literal occurrences of a user query in transcript text.
//
// The query is always escaped before compilation, so user input is never
// interpreted as a regular expression. Offsets reported to callers are counted
// in Unicode code points, which keeps Hebrew transcripts and ASCII text on the
// same footing.
package match

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/limudai/limud/internal/models"
)

// ContextRadius is the number of code points kept on each side of a match.
const ContextRadius = 50

// Pattern is a compiled literal query.
type Pattern struct {
	re         *regexp.Regexp
	wholeWords bool
}

// Compile builds a pattern for query. It returns nil when the query is empty
// after trimming; a nil *Pattern matches nothing.
func Compile(query string, opts models.SearchOptions) *Pattern {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	expr := regexp.QuoteMeta(query)
	if !opts.CaseSensitive {
		expr = "(?i)" + expr
	}
	return &Pattern{
		re:         regexp.MustCompile(expr),
		wholeWords: opts.WholeWords,
	}
}

// Locate returns the byte ranges of all non-overlapping matches in text, left to right.
func (p *Pattern) Locate(text string) [][2]int {
	if p == nil {
		return nil
	}
	var out [][2]int
	pos := 0
	for pos <= len(text) {
		loc := p.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			// A literal non-empty query cannot match empty, but never spin.
			end = start + 1
		}
		if !p.wholeWords || (isBoundary(text, start) && isBoundary(text, end)) {
			out = append(out, [2]int{start, end})
			pos = end
			continue
		}
		// Rejected by the word boundary: retry one code point further, as a
		// regex engine would for \bquery\b.
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	return out
}

// Find returns one MatchSpan per occurrence of the pattern in text.
func (p *Pattern) Find(text string) []models.MatchSpan {
	locs := p.Locate(text)
	if len(locs) == 0 {
		return []models.MatchSpan{}
	}
	spans := make([]models.MatchSpan, 0, len(locs))
	runePos, bytePos := 0, 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		runePos += utf8.RuneCountInString(text[bytePos:start])
		bytePos = start
		matchRunes := utf8.RuneCountInString(text[start:end])

		ctxStartByte, before := stepBack(text, start, ContextRadius)
		ctxEndByte, after := stepForward(text, end, ContextRadius)

		spans = append(spans, models.MatchSpan{
			Index:        runePos,
			MatchedText:  text[start:end],
			ContextText:  text[ctxStartByte:ctxEndByte],
			ContextStart: runePos - before,
			ContextEnd:   runePos + matchRunes + after,
		})
	}
	return spans
}

// FindMatches compiles query and returns its matches in text.
// An empty or whitespace-only query yields an empty result.
func FindMatches(text, query string, opts models.SearchOptions) []models.MatchSpan {
	return Compile(query, opts).Find(text)
}

// isBoundary reports whether byte offset i in text sits between a word and a
// non-word code point. Text edges count as non-word.
func isBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

// isWordRune treats letters, combining marks (niqqud), digits and underscore as word characters.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// stepBack moves up to n code points left from byte offset i.
// It returns the new byte offset and how many code points were stepped.
func stepBack(text string, i, n int) (int, int) {
	stepped := 0
	for stepped < n && i > 0 {
		_, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
		stepped++
	}
	return i, stepped
}

// stepForward moves up to n code points right from byte offset i.
func stepForward(text string, i, n int) (int, int) {
	stepped := 0
	for stepped < n && i < len(text) {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
		stepped++
	}
	return i, stepped
}
