// Package cli provides output helpers for the limud command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/limudai/limud/internal/highlight"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/storage"
	"github.com/limudai/limud/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text with highlighted snippets (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one line per document.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(v string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(v)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, compact or json)", v)
}

// MaxSnippetsPerResult caps how many snippets the text format prints per document.
const MaxSnippetsPerResult = 3

// HighlightStyle is applied to highlighted segments in text output.
var HighlightStyle = highlight.DefaultStyle

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response, HighlightStyle)
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse, style lipgloss.Style) {
	fmt.Fprintf(w, "\nFound %s in %d documents (%dms)\n", plural(totalMatches(response), "match", "matches"),
		response.Total, response.QueryTime)
	if response.Skipped > 0 {
		fmt.Fprintf(w, "%d documents skipped (transcript unavailable)\n", response.Skipped)
	}
	fmt.Fprintln(w)
	for _, hit := range response.Results {
		writeOneResult(w, hit, style)
	}
}

func writeOneResult(w io.Writer, hit *models.SearchHit, style lipgloss.Style) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s  [%s]  %s\n", hit.Rank, hit.Document.Name, hit.Document.Kind,
		plural(hit.MatchCount, "match", "matches"))
	fmt.Fprintf(w, "ID: %s", hit.Document.ID)
	if hit.Document.DurationSeconds != nil {
		fmt.Fprintf(w, " | Duration: %s", utils.FormatDuration(*hit.Document.DurationSeconds))
	}
	fmt.Fprintln(w)
	for i, m := range hit.Matches {
		if i == MaxSnippetsPerResult {
			fmt.Fprintf(w, "  ... and %d more\n", len(hit.Matches)-i)
			break
		}
		fmt.Fprintf(w, "  %s\n", flatten(highlight.Terminal(m.Segments, style)))
	}
	fmt.Fprintln(w)
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, hit := range response.Results {
		snippet := ""
		if len(hit.Matches) > 0 {
			snippet = utils.Truncate(flatten(hit.Matches[0].ContextText), 80)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", hit.Rank, hit.MatchCount, hit.Document.ID, hit.Document.Name, snippet)
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteJob writes a job summary in text or JSON.
func WriteJob(w io.Writer, job *models.Job, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, job)
	}
	fmt.Fprintf(w, "Job %s (document %s): %s\n", job.ID, job.DocumentID, job.Status.State)
	if job.Status.StartedAt != nil {
		fmt.Fprintf(w, "Started:   %s\n", job.Status.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.Status.CompletedAt != nil {
		fmt.Fprintf(w, "Completed: %s\n", job.Status.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if job.Status.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:     %s\n", job.Status.ErrorMessage)
	}
	if job.Status.Transcript != "" {
		fmt.Fprintf(w, "Transcript: %s\n", utils.Truncate(flatten(job.Status.Transcript), 200))
	}
	return nil
}

// WriteStats writes catalog statistics in text or JSON.
func WriteStats(w io.Writer, stats *storage.Stats, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Documents:   %d (%d with transcript)\n", stats.Documents, stats.Transcribed)
	states := make([]string, 0, len(stats.Jobs))
	for s := range stats.Jobs {
		states = append(states, string(s))
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(w, "Jobs %-11s %d\n", s+":", stats.Jobs[models.JobState(s)])
	}
	fmt.Fprintf(w, "Disk usage:  %s\n", utils.FormatBytes(stats.DiskBytes))
	return nil
}

func totalMatches(response *models.SearchResponse) int {
	n := 0
	for _, hit := range response.Results {
		n += hit.MatchCount
	}
	return n
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// flatten collapses newlines and runs of whitespace so a snippet fits on one line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
