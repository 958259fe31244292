package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hellasdata/indexpipe/pkg/records"
	"github.com/hellasdata/indexpipe/pkg/search"
)

// Searcher answers queries over the detail index with context-window
// expansion, embedding the query text when an embedder is available.
type Searcher struct {
	retriever *search.Retriever
	embedder  records.Embedder
	metrics   *Metrics
	logger    *slog.Logger
}

// NewSearcher creates a searcher. The embedder may be nil, in which case
// queries run keyword-only.
func NewSearcher(retriever *search.Retriever, embedder records.Embedder, metrics *Metrics, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		retriever: retriever,
		embedder:  embedder,
		metrics:   metrics,
		logger:    logger.With("component", "searcher"),
	}
}

// Search runs a hybrid query for text and returns hits widened by window
// neighbouring chunks. A non-empty domain restricts results to that domain.
func (s *Searcher) Search(ctx context.Context, text string, top, window int, domain string) ([]search.Document, error) {
	started := time.Now()

	query := search.Query{Text: text, Top: top}
	if s.embedder != nil {
		query.Vector = s.embedder.Embed(ctx, text)
	}
	if domain != "" {
		query.Filter = &search.Filter{Field: "domain", Values: []string{domain}}
	}

	results, err := s.retriever.SearchWithContext(ctx, query, window)
	if err != nil {
		s.metrics.recordSearch("error", time.Since(started))
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.metrics.recordSearch("success", time.Since(started))
	s.logger.Debug("search served",
		"query_len", len(text),
		"results", len(results),
		"elapsed", time.Since(started))
	return results, nil
}
