package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/storage"
)

func newTestImporter(t *testing.T, exts ...string) (*Importer, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil, WithExtensions(exts)), store
}

func TestFileDocID(t *testing.T) {
	a := FileDocID("/data/lessons/1.srt")
	if a != FileDocID("/data/lessons/../lessons/1.srt") {
		t.Error("cleaned paths should yield the same ID")
	}
	if a == FileDocID("/data/lessons/2.srt") {
		t.Error("different paths should yield different IDs")
	}
	if !strings.HasPrefix(a, "file:") || len(a) != len("file:")+64 {
		t.Errorf("unexpected ID format %q", a)
	}
}

func TestImportFile(t *testing.T) {
	im, store := newTestImporter(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "lesson.srt")
	if err := os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:05,000\nשלום תלמידים\n"), 0600); err != nil {
		t.Fatal(err)
	}

	imported, err := im.ImportFile(ctx, path)
	if err != nil || !imported {
		t.Fatalf("ImportFile = %v, %v", imported, err)
	}
	doc, err := store.GetDocument(ctx, FileDocID(path))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "lesson.srt" || doc.Kind != models.KindRecording || doc.Text() != "שלום תלמידים" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.DurationSeconds == nil || *doc.DurationSeconds != 5 {
		t.Errorf("duration = %v", doc.DurationSeconds)
	}

	imported, err = im.ImportFile(ctx, path)
	if err != nil || imported {
		t.Errorf("unchanged file: imported = %v, err = %v", imported, err)
	}

	later := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:05,000\nשלום לכולם\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_ = os.Chtimes(path, later, later)
	imported, err = im.ImportFile(ctx, path)
	if err != nil || !imported {
		t.Fatalf("changed file: imported = %v, err = %v", imported, err)
	}
	doc, _ = store.GetDocument(ctx, FileDocID(path))
	if doc.Text() != "שלום לכולם" {
		t.Errorf("text after change = %q", doc.Text())
	}
}

func TestImportFile_Rejects(t *testing.T) {
	im, _ := newTestImporter(t, ".txt")
	ctx := context.Background()
	dir := t.TempDir()

	other := filepath.Join(dir, "audio.mp3")
	_ = os.WriteFile(other, []byte("x"), 0600)
	if _, err := im.ImportFile(ctx, other); err == nil {
		t.Error("expected extension error")
	}
	if _, err := im.ImportFile(ctx, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected stat error")
	}
	sub := filepath.Join(dir, "folder.txt")
	_ = os.Mkdir(sub, 0755)
	if _, err := im.ImportFile(ctx, sub); err == nil {
		t.Error("expected not-a-regular-file error")
	}
}

func TestImportDirectory(t *testing.T) {
	im, store := newTestImporter(t, ".txt", ".md")
	ctx := context.Background()
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	_ = os.MkdirAll(nested, 0755)
	_ = os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0600)
	_ = os.WriteFile(filepath.Join(nested, "b.md"), []byte("beta"), 0600)
	_ = os.WriteFile(filepath.Join(nested, "c.pdf"), []byte("ignored"), 0600)

	n, err := im.ImportDirectory(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("imported %d files, want 2", n)
	}
	n, err = im.ImportDirectory(ctx, dir)
	if err != nil || n != 0 {
		t.Errorf("second pass = %d, %v", n, err)
	}
	docs, _ := store.ListDocuments(ctx)
	if len(docs) != 2 {
		t.Errorf("catalog has %d documents", len(docs))
	}

	if _, err := im.ImportDirectory(ctx, filepath.Join(dir, "a.txt")); err == nil {
		t.Error("expected not-a-directory error")
	}
}

func TestRemoveFile(t *testing.T) {
	im, store := newTestImporter(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gone.txt")
	_ = os.WriteFile(path, []byte("text"), 0600)
	if _, err := im.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if err := im.RemoveFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, FileDocID(path)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("document should be removed, err = %v", err)
	}
	if err := im.RemoveFile(ctx, path); err != nil {
		t.Errorf("removing twice should be a no-op, got %v", err)
	}
}

func TestImportDocument(t *testing.T) {
	im, store := newTestImporter(t)
	ctx := context.Background()

	doc, err := im.ImportDocument(ctx, &models.DocumentInput{Name: "  recording.mp3 ", Kind: models.KindRecording, Size: 100})
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.Name != "recording.mp3" || doc.HasText() {
		t.Errorf("doc = %+v", doc)
	}

	text := "תמלול"
	if _, err := im.ImportDocument(ctx, &models.DocumentInput{ID: doc.ID, Name: "recording.mp3", Transcript: &text}); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetDocument(ctx, doc.ID)
	if got.Text() != text || !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("updated doc = %+v", got)
	}

	if _, err := im.ImportDocument(ctx, &models.DocumentInput{Name: " "}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := im.ImportDocument(ctx, &models.DocumentInput{Name: "x", Kind: "video"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
