package models

// DocumentList is the paged document listing returned by the HTTP API.
type DocumentList struct {
	Documents []*Document `json:"documents"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
}

// TranscriptResponse carries a document's transcript. Available is false while
// the text does not exist yet.
type TranscriptResponse struct {
	DocumentID string `json:"document_id"`
	Available  bool   `json:"available"`
	Transcript string `json:"transcript,omitempty"`
}

// TranscriptInput replaces a document's transcript.
type TranscriptInput struct {
	Transcript string `json:"transcript"`
}

// JobInput requests a new job for a document.
type JobInput struct {
	DocumentID string `json:"document_id"`
}
