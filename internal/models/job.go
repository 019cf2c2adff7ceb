package models

import (
	"fmt"
	"time"
)

// JobState is the lifecycle stage of a transcription or OCR job.
type JobState string

const (
	JobNotStarted JobState = "not_started"
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Valid reports whether s is a known state.
func (s JobState) Valid() bool {
	switch s {
	case JobNotStarted, JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether no further progress is expected without a retry.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ParseJobState converts a wire value into a JobState.
func ParseJobState(v string) (JobState, error) {
	s := JobState(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown job state %q", v)
	}
	return s, nil
}

// JobStatus is the externally owned processing state of a job, as observed by polling.
// Transcript carries the result payload once the job has completed.
type JobStatus struct {
	State        JobState   `json:"state"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
}

// Job ties a processing status to the catalog document it produces text for.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobStatusUpdate is what a processing worker reports for a job.
type JobStatusUpdate struct {
	State        JobState `json:"state"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Transcript   *string  `json:"transcript,omitempty"`
}
