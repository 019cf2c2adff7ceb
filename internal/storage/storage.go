// Package storage persists the document catalog and transcription jobs.
package storage

import (
	"context"
	"errors"

	"github.com/limudai/limud/internal/models"
)

var (
	// ErrNotFound is returned when a document or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrJobActive is returned when retrying a job that is still pending or processing.
	ErrJobActive = errors.New("job is still active")
)

// Catalog defines document and job persistence operations.
type Catalog interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	ListDocumentsPage(ctx context.Context, offset, limit int) ([]*models.Document, error)
	Transcript(ctx context.Context, id string) (string, bool, error)
	SetTranscript(ctx context.Context, id, text string) error

	// Job operations
	CreateJob(ctx context.Context, documentID string) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	JobStatus(ctx context.Context, id string) (*models.JobStatus, error)
	UpdateJobStatus(ctx context.Context, id string, update models.JobStatusUpdate) (*models.Job, error)
	RetryJob(ctx context.Context, id string) error

	// Stats
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

// Stats summarizes the catalog for status reporting.
type Stats struct {
	Documents   int64                     `json:"documents"`
	Transcribed int64                     `json:"transcribed"`
	Jobs        map[models.JobState]int64 `json:"jobs"`
	DiskBytes   int64                     `json:"disk_bytes"`
}
