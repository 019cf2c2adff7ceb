// Package extract turns transcript and document files into searchable text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/limudai/limud/internal/models"
)

// Result is the text extracted from one file.
type Result struct {
	Text string
	// Kind is KindRecording for caption files, whose text is a transcript of audio.
	Kind models.DocumentKind
	// DurationSeconds is the end of the last caption cue; nil for non-caption files.
	DurationSeconds *float64
}

// Extractor extracts plain text from transcript and document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot) has a dedicated extractor.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".md", ".srt", ".vtt", ".pdf", ".docx":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
// Returns an error if the file cannot be read or parsed.
func (e *Extractor) Extract(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".srt"). Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Result, error) {
	switch strings.ToLower(ext) {
	case ".srt", ".vtt":
		text, end, err := extractCaptions(content)
		if err != nil {
			return nil, err
		}
		res := &Result{Text: text, Kind: models.KindRecording}
		if end > 0 {
			res.DurationSeconds = &end
		}
		return res, nil
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text, Kind: models.KindDocument}, nil
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text, Kind: models.KindDocument}, nil
	default:
		return &Result{Text: extractPlain(content), Kind: models.KindDocument}, nil
	}
}
