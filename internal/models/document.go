// Package models defines core data structures for catalog documents, search matches and jobs.
package models

import "time"

// DocumentKind distinguishes recordings (transcribed audio/video) from uploaded documents (OCR or extracted text).
type DocumentKind string

const (
	KindRecording DocumentKind = "recording"
	KindDocument  DocumentKind = "document"
)

// Document is a catalog item whose transcript text may not be available yet.
// RawText is nil until transcription or extraction has produced text.
type Document struct {
	ID              string       `json:"id" db:"id"`
	Name            string       `json:"name" db:"name"`
	Kind            DocumentKind `json:"kind" db:"kind"`
	Size            int64        `json:"size" db:"size"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty" db:"duration_seconds"`
	RawText         *string      `json:"raw_text,omitempty" db:"raw_text"`
	SourcePath      string       `json:"source_path,omitempty" db:"source_path"`
	SourceMtime     int64        `json:"-" db:"source_mtime"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// HasText reports whether the document's transcript is available.
func (d *Document) HasText() bool {
	return d != nil && d.RawText != nil
}

// Text returns the transcript or "" when it is not available.
func (d *Document) Text() string {
	if d == nil || d.RawText == nil {
		return ""
	}
	return *d.RawText
}

// Summary returns a shallow copy without the transcript, for listings.
func (d *Document) Summary() *Document {
	cp := *d
	cp.RawText = nil
	return &cp
}

// DocumentInput is the input for creating or updating a document.
type DocumentInput struct {
	ID              string       `json:"id,omitempty"`
	Name            string       `json:"name"`
	Kind            DocumentKind `json:"kind,omitempty"`
	Size            int64        `json:"size,omitempty"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty"`
	Transcript      *string      `json:"transcript,omitempty"`
}
