package search

import (
	"time"

	"github.com/limudai/limud/internal/highlight"
	"github.com/limudai/limud/internal/models"
)

// BuildResponse converts ranked results into the API/CLI response, splitting every
// match context into highlight segments. Segments mark the document's own matches
// that fall inside each context. limit <= 0 keeps all results.
func BuildResponse(query string, opts models.SearchOptions, results []*models.SearchResult, limit int, elapsed time.Duration) *models.SearchResponse {
	resp := &models.SearchResponse{
		Query:     query,
		Options:   opts,
		Results:   make([]*models.SearchHit, 0, len(results)),
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i, r := range results {
		hit := &models.SearchHit{
			Document:   r.Document,
			MatchCount: r.MatchCount,
			Matches:    make([]models.HighlightedMatch, 0, len(r.Matches)),
			Rank:       i + 1,
		}
		for _, m := range r.Matches {
			hit.Matches = append(hit.Matches, models.HighlightedMatch{
				MatchSpan: m,
				Segments:  highlight.WindowSegments(m, r.Matches),
			})
		}
		resp.Results = append(resp.Results, hit)
	}
	return resp
}
