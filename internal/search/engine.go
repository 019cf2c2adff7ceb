// Package search runs literal transcript search over a document catalog and
// coordinates debounced, user-driven search passes.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/limudai/limud/internal/match"
	"github.com/limudai/limud/internal/models"
	"go.uber.org/zap"
)

// DocumentSource lists catalog documents and supplies their transcript text.
// Transcript returns ok=false, not an error, when the text is not available yet.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	Transcript(ctx context.Context, id string) (text string, ok bool, err error)
}

// Engine runs one search pass over a DocumentSource.
type Engine struct {
	source      DocumentSource
	concurrency int
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for fetch failures and pass summaries.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithFetchConcurrency caps concurrent transcript fetches. Zero or less means unbounded.
func WithFetchConcurrency(n int) EngineOption {
	return func(e *Engine) { e.concurrency = n }
}

// NewEngine creates a search engine over source.
func NewEngine(source DocumentSource, opts ...EngineOption) *Engine {
	e := &Engine{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pass is the outcome of one search over the catalog.
type Pass struct {
	Results     []*models.SearchResult
	Scanned     int
	Unavailable int
	Failed      int
	Elapsed     time.Duration
}

// Search runs a pass and returns only the ranked results. It has the shape of a SearchFunc.
func (e *Engine) Search(ctx context.Context, query string, opts models.SearchOptions) ([]*models.SearchResult, error) {
	pass, err := e.Run(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return pass.Results, nil
}

// Run matches query against every document's transcript and ranks the documents
// by match count. Documents whose transcript is missing or fails to load are
// skipped for this pass; only listing the catalog can fail the pass.
func (e *Engine) Run(ctx context.Context, query string, opts models.SearchOptions) (*Pass, error) {
	start := time.Now()
	pattern := match.Compile(query, opts)
	if pattern == nil {
		return &Pass{Results: []*models.SearchResult{}}, nil
	}

	docs, err := e.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	type scanned struct {
		result      *models.SearchResult
		unavailable bool
		failed      bool
	}
	// Indexed by catalog position so fetch completion order cannot affect ranking ties.
	out := make([]scanned, len(docs))

	var (
		wg  sync.WaitGroup
		sem chan struct{}
	)
	if e.concurrency > 0 {
		sem = make(chan struct{}, e.concurrency)
	}
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		if doc.HasText() {
			out[i].result = models.NewSearchResult(doc.Summary(), pattern.Find(doc.Text()))
			continue
		}
		wg.Add(1)
		go func(i int, doc *models.Document) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					out[i].failed = true
					return
				}
			}
			text, ok, err := e.source.Transcript(ctx, doc.ID)
			if err != nil {
				e.logger.Warn("transcript fetch failed", zap.String("document_id", doc.ID), zap.Error(err))
				out[i].failed = true
				return
			}
			if !ok {
				out[i].unavailable = true
				return
			}
			out[i].result = models.NewSearchResult(doc.Summary(), pattern.Find(text))
		}(i, doc)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pass := &Pass{Scanned: len(docs)}
	results := make([]*models.SearchResult, 0, len(docs))
	for _, s := range out {
		switch {
		case s.failed:
			pass.Failed++
		case s.unavailable:
			pass.Unavailable++
		case s.result != nil:
			results = append(results, s.result)
		}
	}
	pass.Results = Rank(results)
	pass.Elapsed = time.Since(start)
	e.logger.Debug("search pass finished",
		zap.String("query", strings.TrimSpace(query)),
		zap.Bool("case_sensitive", opts.CaseSensitive),
		zap.Bool("whole_words", opts.WholeWords),
		zap.Int("documents", pass.Scanned),
		zap.Int("matched", len(pass.Results)),
		zap.Int("unavailable", pass.Unavailable),
		zap.Int("failed", pass.Failed),
		zap.Duration("elapsed", pass.Elapsed),
	)
	return pass, nil
}
