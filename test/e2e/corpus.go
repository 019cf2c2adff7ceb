// Package e2e provides end-to-end tests over a corpus of lesson transcripts.
package e2e

import (
	"fmt"
	"strings"

	"github.com/limudai/limud/internal/models"
)

// RankingTerm appears in every lesson a varying number of times.
const RankingTerm = "shiur"

// Lesson is a corpus entry: a recording or document with a known transcript.
type Lesson struct {
	ID         string
	Name       string
	Kind       models.DocumentKind
	Transcript string
	// Signature occurs SignatureCount times in this lesson and nowhere else.
	Signature      string
	SignatureCount int
	// RankingCount is how many times RankingTerm occurs.
	RankingCount int
}

// QueryTestCase is a query whose only hit must be ExpectedID with ExpectedCount matches.
type QueryTestCase struct {
	Query         string
	ExpectedID    string
	ExpectedCount int
	Description   string
}

// Corpus holds lessons and query test cases for E2E tests.
type Corpus struct {
	Lessons   []Lesson
	TestCases []QueryTestCase
}

var topics = []struct {
	name      string
	signature string
}{
	{"Parashat Bereshit", "creation of light"},
	{"Parashat Noach", "the rainbow covenant"},
	{"Lech Lecha", "go forth from your land"},
	{"Vayera", "binding of Isaac"},
	{"Chayei Sarah", "cave of Machpelah"},
	{"Toldot", "lentil stew"},
	{"Vayetze", "Jacob's ladder"},
	{"Vayishlach", "wrestling with the angel"},
	{"Vayeshev", "coat of many colors"},
	{"Miketz", "seven lean cows"},
	{"הלכות שבת", "שמירת שבת"},
	{"כשרות", "הלכות כשרות"},
	{"תפילה", "תפילת שחרית"},
	{"Pirkei Avot", "who is wise"},
	{"Bava Metzia", "lost property"},
	{"Berakhot", "blessing over bread"},
	{"פסח", "ליל הסדר"},
	{"סוכות", "ארבעת המינים"},
	{"Rosh Hashanah", "sounding the shofar"},
	{"Yom Kippur", "the scapegoat"},
}

// BuildCorpus returns one lesson per topic. Even lessons are recordings, odd
// ones documents; signature and ranking counts cycle so that ranking ties exist.
func BuildCorpus() *Corpus {
	lessons := make([]Lesson, 0, len(topics))
	for i, t := range topics {
		kind := models.KindRecording
		if i%2 == 1 {
			kind = models.KindDocument
		}
		l := Lesson{
			ID:             fmt.Sprintf("lesson-%03d", i+1),
			Name:           t.name,
			Kind:           kind,
			Signature:      t.signature,
			SignatureCount: i%3 + 1,
			RankingCount:   i%4 + 1,
		}
		l.Transcript = buildTranscript(l)
		lessons = append(lessons, l)
	}
	cases := make([]QueryTestCase, 0, len(lessons))
	for _, l := range lessons {
		cases = append(cases, QueryTestCase{
			Query:         l.Signature,
			ExpectedID:    l.ID,
			ExpectedCount: l.SignatureCount,
			Description:   fmt.Sprintf("query %q finds only %s", l.Signature, l.ID),
		})
	}
	return &Corpus{Lessons: lessons, TestCases: cases}
}

// buildTranscript lays out a lesson as one sentence per line.
func buildTranscript(l Lesson) string {
	lines := []string{fmt.Sprintf("Welcome to today's lesson on %s.", l.Name)}
	for i := 0; i < l.SignatureCount; i++ {
		lines = append(lines, fmt.Sprintf("Remember the %s, point %d.", l.Signature, i+1))
	}
	for i := 0; i < l.RankingCount; i++ {
		lines = append(lines, fmt.Sprintf("We continue the %s with question %d.", RankingTerm, i+1))
	}
	lines = append(lines, "Thank you and see you next week.")
	return strings.Join(lines, "\n")
}

// RankingOrder returns lesson IDs in the order a search for RankingTerm must
// return them: descending count, corpus order among equal counts.
func (c *Corpus) RankingOrder() []string {
	var ids []string
	for count := 4; count >= 1; count-- {
		for _, l := range c.Lessons {
			if l.RankingCount == count {
				ids = append(ids, l.ID)
			}
		}
	}
	return ids
}

// ToDocumentInputs converts the corpus to API inputs with transcripts attached.
func (c *Corpus) ToDocumentInputs() []models.DocumentInput {
	out := make([]models.DocumentInput, len(c.Lessons))
	for i := range c.Lessons {
		l := &c.Lessons[i]
		text := l.Transcript
		out[i] = models.DocumentInput{
			ID:         l.ID,
			Name:       l.Name,
			Kind:       l.Kind,
			Size:       int64(len(text)),
			Transcript: &text,
		}
	}
	return out
}

func countFold(text, phrase string) int {
	return strings.Count(strings.ToLower(text), strings.ToLower(phrase))
}
