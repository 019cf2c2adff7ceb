package models

// SearchOptions are the user-toggled flags controlling match semantics.
type SearchOptions struct {
	CaseSensitive bool `json:"case_sensitive"`
	WholeWords    bool `json:"whole_words"`
}

// MatchSpan is one occurrence of the query inside a document's text.
// Offsets are counted in Unicode code points.
type MatchSpan struct {
	Index        int    `json:"index"`
	MatchedText  string `json:"matched_text"`
	ContextText  string `json:"context_text"`
	ContextStart int    `json:"context_start"`
	ContextEnd   int    `json:"context_end"`
}

// SearchResult is a document annotated with its matches for one query.
// MatchCount always equals len(Matches).
type SearchResult struct {
	Document   *Document   `json:"document"`
	Matches    []MatchSpan `json:"matches"`
	MatchCount int         `json:"match_count"`
}

// NewSearchResult builds a result keeping MatchCount in sync with Matches.
func NewSearchResult(doc *Document, matches []MatchSpan) *SearchResult {
	return &SearchResult{Document: doc, Matches: matches, MatchCount: len(matches)}
}

// Segment is a piece of a rendered snippet; Highlighted segments are query occurrences.
type Segment struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

// SearchRequest is the body of a search API call.
type SearchRequest struct {
	Query string `json:"query"`
	SearchOptions
	Limit int `json:"limit,omitempty"`
}

// HighlightedMatch is a MatchSpan with its context split into highlight segments.
type HighlightedMatch struct {
	MatchSpan
	Segments []Segment `json:"segments"`
}

// SearchHit is one ranked document in a search response.
type SearchHit struct {
	Document   *Document          `json:"document"`
	MatchCount int                `json:"match_count"`
	Matches    []HighlightedMatch `json:"matches"`
	Rank       int                `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string        `json:"query"`
	Options   SearchOptions `json:"options"`
	Results   []*SearchHit  `json:"results"`
	Total     int           `json:"total"`
	Skipped   int           `json:"skipped,omitempty"`
	QueryTime int64         `json:"query_time_ms"`
}
