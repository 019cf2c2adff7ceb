// Package importer loads transcript files and API submissions into the document catalog.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/limudai/limud/internal/extract"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/storage"
)

const fileIDPrefix = "file:"

// ErrInvalidDocument is returned when a submitted document fails validation.
var ErrInvalidDocument = errors.New("invalid document")

// Store is the catalog subset the importer writes to.
type Store interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Importer writes documents into a Store.
type Importer struct {
	store      Store
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets a logger for debug output (file imported, skipped, removed).
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithExtensions restricts file imports to the given extensions. Empty allows every extension.
func WithExtensions(exts []string) Option {
	return func(im *Importer) { im.extensions = exts }
}

// New creates an importer. extractor may be nil, in which case a default one is used.
func New(store Store, extractor *extract.Extractor, opts ...Option) *Importer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	im := &Importer{store: store, extractor: extractor, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID, so re-importing updates the same document.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return fileIDPrefix + hex.EncodeToString(hash[:])
}

// ImportDocument stores a document submitted through the API. A missing ID is
// generated; a nil Transcript leaves the document waiting for text.
func (im *Importer) ImportDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDocument)
	}
	if input.Kind != "" && input.Kind != models.KindRecording && input.Kind != models.KindDocument {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidDocument, input.Kind)
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	doc := &models.Document{
		ID:              input.ID,
		Name:            name,
		Kind:            input.Kind,
		Size:            input.Size,
		DurationSeconds: input.DurationSeconds,
		RawText:         input.Transcript,
	}
	if existing, err := im.store.GetDocument(ctx, doc.ID); err == nil {
		doc.CreatedAt = existing.CreatedAt
	}
	if err := im.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	im.logger.Debug("importer document stored", zap.String("id", doc.ID), zap.Bool("has_text", doc.HasText()))
	return doc, nil
}

// ImportFile extracts the file at path and stores it as a document with a
// path-derived ID. It returns false without touching the catalog when the file
// is unchanged since the last import (same mtime and size).
func (im *Importer) ImportFile(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if !im.extensionAllowed(ext) {
		return false, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}

	docID := FileDocID(absPath)
	existing, err := im.store.GetDocument(ctx, docID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if existing != nil && existing.SourcePath == absPath &&
		existing.SourceMtime == info.ModTime().UnixNano() && existing.Size == info.Size() {
		im.logger.Debug("importer skipping unchanged file", zap.String("path", absPath))
		return false, nil
	}

	res, err := im.extractor.Extract(absPath)
	if err != nil {
		return false, fmt.Errorf("extract content: %w", err)
	}
	text := res.Text
	doc := &models.Document{
		ID:              docID,
		Name:            filepath.Base(absPath),
		Kind:            res.Kind,
		Size:            info.Size(),
		DurationSeconds: res.DurationSeconds,
		RawText:         &text,
		SourcePath:      absPath,
		SourceMtime:     info.ModTime().UnixNano(),
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
	}
	if err := im.store.SaveDocument(ctx, doc); err != nil {
		return false, fmt.Errorf("failed to store document: %w", err)
	}
	im.logger.Debug("importer file imported", zap.String("path", absPath), zap.String("doc_id", docID))
	return true, nil
}

// ImportDirectory walks dir recursively and imports each regular file with an
// allowed extension. Returns the number of files imported (unchanged files are
// not counted) and the first error encountered, if any.
func (im *Importer) ImportDirectory(ctx context.Context, dir string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !im.extensionAllowed(filepath.Ext(path)) {
			return nil
		}
		// Resolve symlinks so only regular files are imported.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		imported, importErr := im.ImportFile(ctx, path)
		if importErr != nil {
			return importErr
		}
		if imported {
			n++
		}
		return nil
	})
	return n, err
}

// RemoveFile deletes the document imported from path. Missing documents are not an error.
func (im *Importer) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if err := im.store.DeleteDocument(ctx, FileDocID(absPath)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	im.logger.Debug("importer file removed", zap.String("path", absPath))
	return nil
}

func (im *Importer) extensionAllowed(ext string) bool {
	if len(im.extensions) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range im.extensions {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
