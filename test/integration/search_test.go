// Package integration provides tests that run the search stack against real SQLite storage.
package integration

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/search"
	"github.com/limudai/limud/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func save(t *testing.T, store *storage.SQLiteStorage, id, name string, text *string) {
	t.Helper()
	doc := &models.Document{ID: id, Name: name, Kind: models.KindRecording, RawText: text}
	if err := store.SaveDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
}

func strPtr(s string) *string { return &s }

func TestIntegration_Search(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	save(t, store, "doc1", "Bereshit", strPtr("In the beginning. Bereshit means beginning, and the beginning matters."))
	save(t, store, "doc2", "Noach", strPtr("Noach built the ark at the beginning of the flood."))
	save(t, store, "doc3", "Pending", nil)
	save(t, store, "doc4", "Empty", strPtr(""))

	engine := search.NewEngine(store)
	pass, err := engine.Run(ctx, "beginning", models.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(pass.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(pass.Results))
	}
	if pass.Results[0].Document.ID != "doc1" || pass.Results[0].MatchCount != 3 {
		t.Errorf("top result = %s (%d)", pass.Results[0].Document.ID, pass.Results[0].MatchCount)
	}
	if pass.Scanned != 4 || pass.Unavailable != 1 || pass.Failed != 0 {
		t.Errorf("pass = scanned %d, unavailable %d, failed %d", pass.Scanned, pass.Unavailable, pass.Failed)
	}

	// A transcript arriving later makes the document searchable on the next pass.
	if err := store.SetTranscript(ctx, "doc3", "Back to the beginning with a new lesson."); err != nil {
		t.Fatal(err)
	}
	pass, err = engine.Run(ctx, "beginning", models.SearchOptions{WholeWords: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pass.Results) != 3 || pass.Unavailable != 0 {
		t.Errorf("after transcript: %d results, %d unavailable", len(pass.Results), pass.Unavailable)
	}
}

func TestIntegration_ControllerOverStorage(t *testing.T) {
	store := newStore(t)
	save(t, store, "heb", "שיעור", strPtr("שלום עולם, שלום לכולם"))
	save(t, store, "eng", "Lesson", strPtr("Shalom everyone"))

	engine := search.NewEngine(store)
	var (
		mu   sync.Mutex
		seen [][]*models.SearchResult
	)
	got := make(chan struct{}, 8)
	c := search.NewController(engine.Search,
		search.WithDebounce(20*time.Millisecond),
		search.WithResultsListener(func(r []*models.SearchResult) {
			mu.Lock()
			seen = append(seen, r)
			mu.Unlock()
			got <- struct{}{}
		}),
	)
	defer c.Close()

	c.SetQuery("ש")
	c.SetQuery("שלו")
	c.SetQuery("שלום")

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no results delivered")
	}
	mu.Lock()
	if len(seen) != 1 {
		t.Fatalf("expected one delivery for a burst of keystrokes, got %d", len(seen))
	}
	results := seen[0]
	mu.Unlock()
	if len(results) != 1 || results[0].Document.ID != "heb" || results[0].MatchCount != 2 {
		t.Errorf("results = %+v", results)
	}

	c.Clear()
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("clear did not deliver")
	}
	mu.Lock()
	defer mu.Unlock()
	if last := seen[len(seen)-1]; len(last) != 0 {
		t.Errorf("clear delivered %d results", len(last))
	}
}
