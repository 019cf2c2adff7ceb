package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/limudai/limud/internal/highlight"
	"github.com/limudai/limud/internal/match"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/search"
)

var transcript = strings.Repeat("Welcome to the shiur on Parashat Bereshit. שלום עולם, today we learn Torah together. ", 200)

func BenchmarkFindMatches(b *testing.B) {
	opts := models.SearchOptions{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = match.FindMatches(transcript, "torah", opts)
	}
}

func BenchmarkFindMatches_WholeWords(b *testing.B) {
	opts := models.SearchOptions{WholeWords: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = match.FindMatches(transcript, "שלום", opts)
	}
}

func BenchmarkRank(b *testing.B) {
	results := make([]*models.SearchResult, 1000)
	for i := range results {
		doc := &models.Document{ID: fmt.Sprintf("doc-%d", i)}
		results[i] = models.NewSearchResult(doc, make([]models.MatchSpan, i%17))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Rank(results)
	}
}

func BenchmarkSegments(b *testing.B) {
	spans := match.FindMatches(transcript, "torah", models.SearchOptions{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, s := range spans {
			_ = highlight.Segments(s.ContextText, "torah", models.SearchOptions{})
		}
	}
}

// memorySource serves a fixed catalog without transcripts preloaded.
type memorySource struct {
	docs  []*models.Document
	texts map[string]string
}

func (m *memorySource) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return m.docs, nil
}

func (m *memorySource) Transcript(ctx context.Context, id string) (string, bool, error) {
	t, ok := m.texts[id]
	return t, ok, nil
}

func BenchmarkEngineRun(b *testing.B) {
	src := &memorySource{texts: make(map[string]string)}
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("doc-%d", i)
		src.docs = append(src.docs, &models.Document{ID: id, Name: id})
		src.texts[id] = transcript[:len(transcript)/(i%5+1)]
	}
	engine := search.NewEngine(src, search.WithFetchConcurrency(8))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Run(ctx, "shiur", models.SearchOptions{})
	}
}
