package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/limudai/limud/internal/models"
)

// SQLiteStorage implements Catalog using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL,
		raw_text TEXT,
		source_path TEXT NOT NULL DEFAULT '',
		source_mtime INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		state TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_document_id ON jobs(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, name, kind, size, duration_seconds, raw_text, source_path, source_mtime, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc      models.Document
		duration sql.NullFloat64
		rawText  sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Name, &doc.Kind, &doc.Size, &duration, &rawText,
		&doc.SourcePath, &doc.SourceMtime, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if duration.Valid {
		d := duration.Float64
		doc.DurationSeconds = &d
	}
	if rawText.Valid {
		s := rawText.String
		doc.RawText = &s
	}
	return &doc, nil
}

// SaveDocument inserts doc or replaces the existing row with the same ID.
// CreatedAt of an existing row is preserved.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if doc.Kind == "" {
		doc.Kind = models.KindDocument
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	var duration sql.NullFloat64
	if doc.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *doc.DurationSeconds, Valid: true}
	}
	var rawText sql.NullString
	if doc.RawText != nil {
		rawText = sql.NullString{String: *doc.RawText, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			size = excluded.size,
			duration_seconds = excluded.duration_seconds,
			raw_text = excluded.raw_text,
			source_path = excluded.source_path,
			source_mtime = excluded.source_mtime,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Name, string(doc.Kind), doc.Size, duration, rawText,
		doc.SourcePath, doc.SourceMtime, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document by ID, including its transcript.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document and its jobs.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListDocuments returns every document in catalog order (oldest first) without
// transcripts; search fetches text separately through Transcript.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return s.listDocuments(ctx, -1, 0)
}

// ListDocumentsPage returns documents with offset and limit, without transcripts.
func (s *SQLiteStorage) ListDocumentsPage(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.listDocuments(ctx, limit, offset)
}

func (s *SQLiteStorage) listDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, size, duration_seconds, NULL, source_path, source_mtime, created_at, updated_at
		 FROM documents ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Transcript returns the document's text. ok is false when the document exists
// but has no text yet.
func (s *SQLiteStorage) Transcript(ctx context.Context, id string) (string, bool, error) {
	var text sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT raw_text FROM documents WHERE id = ?`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", false, err
	}
	return text.String, text.Valid, nil
}

// SetTranscript stores text as the document's transcript.
func (s *SQLiteStorage) SetTranscript(ctx context.Context, id, text string) error {
	return setTranscript(ctx, s.db, id, text)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setTranscript(ctx context.Context, db execer, id, text string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE documents SET raw_text = ?, updated_at = ? WHERE id = ?`,
		text, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set transcript for %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// Stats returns document, transcript and job counts plus the database size on disk.
func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Jobs: map[models.JobState]int64{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(raw_text) FROM documents`,
	).Scan(&st.Documents, &st.Transcribed)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		st.Jobs[models.JobState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	st.DiskBytes, err = DiskUsageBytes(sqliteFiles(s.path)...)
	if err != nil {
		return nil, fmt.Errorf("failed to measure database size: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
