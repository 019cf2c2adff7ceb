package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/limudai/limud/internal/models"
)

// CreateJob registers a pending transcription job for an existing document.
func (s *SQLiteStorage) CreateJob(ctx context.Context, documentID string) (*models.Job, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Status:     models.JobStatus{State: models.JobPending},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, document_id, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.DocumentID, string(job.Status.State), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// GetJob returns a job by ID. The status carries the transcript once completed.
func (s *SQLiteStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return getJob(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJob(ctx context.Context, db queryer, id string) (*models.Job, error) {
	var (
		job         models.Job
		state       string
		startedAt   sql.NullTime
		completedAt sql.NullTime
		transcript  sql.NullString
	)
	err := db.QueryRowContext(ctx,
		`SELECT j.id, j.document_id, j.state, j.error_message, j.started_at, j.completed_at,
			j.created_at, j.updated_at, d.raw_text
		 FROM jobs j JOIN documents d ON d.id = j.document_id
		 WHERE j.id = ?`, id,
	).Scan(&job.ID, &job.DocumentID, &state, &job.Status.ErrorMessage, &startedAt, &completedAt,
		&job.CreatedAt, &job.UpdatedAt, &transcript)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	job.Status.State = models.JobState(state)
	if startedAt.Valid {
		t := startedAt.Time
		job.Status.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.Status.CompletedAt = &t
	}
	if job.Status.State == models.JobCompleted {
		job.Status.Transcript = transcript.String
	}
	return &job, nil
}

// JobStatus returns the current status of a job.
func (s *SQLiteStorage) JobStatus(ctx context.Context, id string) (*models.JobStatus, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return &job.Status, nil
}

// UpdateJobStatus records a worker's report. Entering processing stamps StartedAt,
// reaching a terminal state stamps CompletedAt, and a completed report carrying a
// transcript stores it on the document in the same transaction.
func (s *SQLiteStorage) UpdateJobStatus(ctx context.Context, id string, update models.JobStatusUpdate) (*models.Job, error) {
	if !update.State.Valid() {
		return nil, fmt.Errorf("invalid job state %q", update.State)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := getJob(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var startedAt, completedAt any
	if current.Status.StartedAt != nil {
		startedAt = *current.Status.StartedAt
	}
	switch update.State {
	case models.JobProcessing:
		if startedAt == nil {
			startedAt = now
		}
	case models.JobCompleted, models.JobFailed:
		if startedAt == nil {
			startedAt = now
		}
		completedAt = now
	case models.JobPending, models.JobNotStarted:
		startedAt = nil
	}
	errorMessage := ""
	if update.State == models.JobFailed {
		errorMessage = update.ErrorMessage
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET state = ?, error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(update.State), errorMessage, startedAt, completedAt, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}

	if update.State == models.JobCompleted && update.Transcript != nil {
		if err := setTranscript(ctx, tx, current.DocumentID, *update.Transcript); err != nil {
			return nil, err
		}
	}

	job, err := getJob(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

// RetryJob resets a finished or failed job to pending. Active jobs return ErrJobActive.
func (s *SQLiteStorage) RetryJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, error_message = '', started_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE id = ? AND state NOT IN (?, ?)`,
		string(models.JobPending), time.Now().UTC(), id,
		string(models.JobPending), string(models.JobProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to retry job %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		return nil
	}
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("job %s: %w", id, ErrJobActive)
}
