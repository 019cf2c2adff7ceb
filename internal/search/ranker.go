package search

import (
	"sort"

	"github.com/limudai/limud/internal/models"
)

// Rank returns a new slice holding the results with at least one match, sorted
// by match count descending. Ties keep the order in which documents were scanned.
func Rank(results []*models.SearchResult) []*models.SearchResult {
	ranked := make([]*models.SearchResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.MatchCount > 0 {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchCount > ranked[j].MatchCount
	})
	return ranked
}
