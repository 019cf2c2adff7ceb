package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/limudai/limud/internal/config"
	"github.com/limudai/limud/internal/importer"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/poller"
	"github.com/limudai/limud/internal/remote"
	"github.com/limudai/limud/internal/search"
	"github.com/limudai/limud/internal/server"
	"github.com/limudai/limud/internal/storage"
)

const e2eSearchLimit = 30

type stack struct {
	store    *storage.SQLiteStorage
	importer *importer.Importer
	engine   *search.Engine
	client   *remote.Client
}

// newStack wires storage, importer, engine and the HTTP API behind an httptest server.
func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{DatabasePath: filepath.Join(dir, "catalog.db")}}
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	imp := importer.New(store, nil)
	engine := search.NewEngine(store, search.WithFetchConcurrency(4))
	srv := server.NewServer(engine, store, imp, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &stack{
		store:    store,
		importer: imp,
		engine:   engine,
		client:   remote.NewClient(ts.URL, ""),
	}
}

func (s *stack) search(t *testing.T, query string, opts models.SearchOptions) *models.SearchResponse {
	t.Helper()
	resp, err := s.client.Search(context.Background(), models.SearchRequest{
		Query:         query,
		SearchOptions: opts,
		Limit:         e2eSearchLimit,
	})
	if err != nil {
		t.Fatalf("search %q failed: %v", query, err)
	}
	return resp
}

func TestE2E_SearchOverHTTP(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	for _, input := range corpus.ToDocumentInputs() {
		if _, err := s.client.CreateDocument(ctx, input); err != nil {
			t.Fatalf("create document %q: %v", input.ID, err)
		}
	}
	t.Logf("stored %d lessons; running %d query test cases", len(corpus.Lessons), len(corpus.TestCases))

	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp := s.search(t, tc.Query, models.SearchOptions{})
			if resp.Total != 1 || len(resp.Results) != 1 {
				t.Fatalf("query %q: total = %d, want 1 (ids: %v)", tc.Query, resp.Total, documentIDs(resp))
			}
			hit := resp.Results[0]
			if hit.Document.ID != tc.ExpectedID || hit.MatchCount != tc.ExpectedCount {
				t.Errorf("hit = %s (%d), want %s (%d)", hit.Document.ID, hit.MatchCount, tc.ExpectedID, tc.ExpectedCount)
			}
			if hit.Document.RawText != nil {
				t.Error("search hits must not carry the full transcript")
			}
			for _, m := range hit.Matches {
				if !hasHighlight(m.Segments, m.MatchedText) {
					t.Errorf("match %q has no highlighted segment: %+v", m.MatchedText, m.Segments)
				}
			}
		})
	}
}

func TestE2E_RankingOrder(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	for _, input := range corpus.ToDocumentInputs() {
		if _, err := s.client.CreateDocument(ctx, input); err != nil {
			t.Fatal(err)
		}
	}

	resp := s.search(t, RankingTerm, models.SearchOptions{})
	got := documentIDs(resp)
	want := corpus.RankingOrder()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ranking order:\n got  %v\n want %v", got, want)
	}
	for i, hit := range resp.Results {
		if hit.Rank != i+1 {
			t.Errorf("result %d has rank %d", i, hit.Rank)
		}
	}

	// Query whitespace is trimmed, so the same ranking comes back.
	padded := s.search(t, "  "+RankingTerm+"  ", models.SearchOptions{})
	if fmt.Sprint(documentIDs(padded)) != fmt.Sprint(want) {
		t.Errorf("padded query returned %v", documentIDs(padded))
	}

	if resp := s.search(t, "   ", models.SearchOptions{}); resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("blank query returned %d results", resp.Total)
	}
}

func TestE2E_CaseAndWholeWordOptions(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	for _, input := range corpus.ToDocumentInputs() {
		if _, err := s.client.CreateDocument(ctx, input); err != nil {
			t.Fatal(err)
		}
	}
	text := "Shiurim for the summer: two shiurim a week."
	if _, err := s.client.CreateDocument(ctx, models.DocumentInput{ID: "schedule", Name: "Schedule", Transcript: &text}); err != nil {
		t.Fatal(err)
	}

	loose := s.search(t, RankingTerm, models.SearchOptions{})
	if loose.Total != len(corpus.Lessons)+1 {
		t.Errorf("substring search total = %d, want %d", loose.Total, len(corpus.Lessons)+1)
	}

	whole := s.search(t, RankingTerm, models.SearchOptions{WholeWords: true})
	if whole.Total != len(corpus.Lessons) {
		t.Errorf("whole-word search total = %d, want %d", whole.Total, len(corpus.Lessons))
	}
	for _, hit := range whole.Results {
		if hit.Document.ID == "schedule" {
			t.Error("whole-word search must not match inside \"Shiurim\"")
		}
	}

	if resp := s.search(t, "Shiur", models.SearchOptions{CaseSensitive: true}); resp.Total != 1 || documentIDs(resp)[0] != "schedule" {
		t.Errorf("case-sensitive search = %v", documentIDs(resp))
	}

	hebrew := s.search(t, "שבת", models.SearchOptions{WholeWords: true})
	if hebrew.Total != 1 || hebrew.Results[0].Document.ID != "lesson-011" {
		t.Errorf("hebrew whole-word search = %v", documentIDs(hebrew))
	}
}

func TestE2E_TranscriptionJobFlow(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := s.client.CreateDocument(ctx, models.DocumentInput{ID: "rec-pending", Name: "Mishnah Berurah", Kind: models.KindRecording})
	if err != nil {
		t.Fatal(err)
	}
	if resp := s.search(t, "mishnah", models.SearchOptions{}); resp.Total != 0 || resp.Skipped != 1 {
		t.Errorf("before transcription: total = %d, skipped = %d", resp.Total, resp.Skipped)
	}

	job, err := s.client.CreateJob(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	completed := make(chan string, 1)
	p := poller.New(s.client,
		poller.WithInterval(10*time.Millisecond),
		poller.OnComplete(func(jobID, transcript string) { completed <- transcript }),
	)
	p.Watch(ctx, job.ID)
	defer p.Stop()

	if _, err := s.client.UpdateJobStatus(ctx, job.ID, models.JobStatusUpdate{State: models.JobProcessing}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return p.View().Status.State == models.JobProcessing })

	text := "Today we learn the Mishnah Berurah on the laws of mishnah study."
	if _, err := s.client.UpdateJobStatus(ctx, job.ID, models.JobStatusUpdate{State: models.JobCompleted, Transcript: &text}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-completed:
		if got != text {
			t.Errorf("completion transcript = %q", got)
		}
	case <-ctx.Done():
		t.Fatal("completion callback never fired")
	}

	resp := s.search(t, "mishnah", models.SearchOptions{})
	if resp.Total != 1 || resp.Results[0].MatchCount != 2 || resp.Skipped != 0 {
		t.Errorf("after transcription: total = %d, skipped = %d, ids = %v", resp.Total, resp.Skipped, documentIDs(resp))
	}

	// Further polls of the same completed job must not notify again.
	polls := p.View().Polls
	waitFor(t, func() bool { return p.View().Polls >= polls+3 })
	select {
	case <-completed:
		t.Error("completion callback fired twice")
	default:
	}
}

func TestE2E_FailedJobRetry(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := s.client.CreateDocument(ctx, models.DocumentInput{Name: "Scan of page 4", Kind: models.KindDocument})
	if err != nil {
		t.Fatal(err)
	}
	job, err := s.client.CreateJob(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.client.RetryJob(ctx, job.ID); !remote.IsConflict(err) {
		t.Errorf("retrying a pending job: err = %v, want 409", err)
	}

	p := poller.New(s.client, poller.WithInterval(10*time.Millisecond))
	p.Watch(ctx, job.ID)
	defer p.Stop()

	if _, err := s.client.UpdateJobStatus(ctx, job.ID, models.JobStatusUpdate{State: models.JobFailed, ErrorMessage: "ocr provider timeout"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return p.View().Failed() })
	if msg := p.View().Status.ErrorMessage; msg != "ocr provider timeout" {
		t.Errorf("error message = %q", msg)
	}

	if err := p.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got, err := s.client.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status.State != models.JobPending || got.Status.ErrorMessage != "" {
		t.Errorf("after retry: %+v", got.Status)
	}
	if p.View().Failed() {
		t.Error("poller view should leave failed after a retry")
	}

	if _, err := s.client.JobStatus(ctx, "no-such-job"); !remote.IsNotFound(err) {
		t.Errorf("unknown job: err = %v, want 404", err)
	}
}

func TestE2E_ImportFilesThenSearch(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	dir := t.TempDir()
	paths := make(map[string]string, len(corpus.Lessons))
	for i, l := range corpus.Lessons {
		ext := SupportedFileExtensions[i%len(SupportedFileExtensions)]
		content, err := WriteMinimalFile(ext, l.Transcript)
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, l.ID+ext)
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatal(err)
		}
		paths[l.ID] = path
	}

	n, err := s.importer.ImportDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("ImportDirectory: %v", err)
	}
	if n != len(corpus.Lessons) {
		t.Fatalf("imported %d files, want %d", n, len(corpus.Lessons))
	}

	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp := s.search(t, tc.Query, models.SearchOptions{})
			if resp.Total != 1 {
				t.Fatalf("query %q: total = %d (ids: %v)", tc.Query, resp.Total, documentIDs(resp))
			}
			abs, err := filepath.Abs(paths[tc.ExpectedID])
			if err != nil {
				t.Fatal(err)
			}
			hit := resp.Results[0]
			if hit.Document.ID != importer.FileDocID(abs) {
				t.Errorf("hit %s is not the file imported for %s", hit.Document.ID, tc.ExpectedID)
			}
			if hit.MatchCount != tc.ExpectedCount {
				t.Errorf("match count = %d, want %d", hit.MatchCount, tc.ExpectedCount)
			}
		})
	}

	doc, err := s.store.GetDocument(ctx, importer.FileDocID(mustAbs(t, paths["lesson-003"])))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Kind != models.KindRecording || doc.DurationSeconds == nil {
		t.Errorf("caption import: kind = %s, duration = %v", doc.Kind, doc.DurationSeconds)
	}

	n, err = s.importer.ImportDirectory(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("re-import of unchanged files imported %d", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

func documentIDs(resp *models.SearchResponse) []string {
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Document != nil {
			ids = append(ids, r.Document.ID)
		}
	}
	return ids
}

func hasHighlight(segments []models.Segment, text string) bool {
	for _, s := range segments {
		if s.Highlighted && s.Text == text {
			return true
		}
	}
	return false
}
