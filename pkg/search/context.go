package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// RetrieverConfig names the fields the context-window expansion walks over
// and sets its defaults.
type RetrieverConfig struct {
	KeyField      string `json:"key_field"`
	ParentField   string `json:"parent_field"`
	SequenceField string `json:"sequence_field"`
	WindowSize    int    `json:"window_size"`
	MaxSiblings   int    `json:"max_siblings"`
}

// DefaultRetrieverConfig returns the default retriever configuration.
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{
		KeyField:      "chunk_id",
		ParentField:   "section_id",
		SequenceField: "chunk_number",
		WindowSize:    1,
		MaxSiblings:   1000,
	}
}

// Retriever runs a search and widens every hit with its neighbouring chunks
// from the same parent, so a caller sees each match in context instead of as
// an isolated fragment.
type Retriever struct {
	config *RetrieverConfig
	index  Index
	logger *slog.Logger
}

// NewRetriever creates a retriever over index.
func NewRetriever(config *RetrieverConfig, index Index, logger *slog.Logger) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		config: config,
		index:  index,
		logger: logger.With("component", "retriever"),
	}
}

// SearchWithContext runs query and expands each hit into hit, the window of
// chunks before it and the window after it, in that order. Duplicate
// neighbours are kept once; the hit itself is never repeated.
func (r *Retriever) SearchWithContext(ctx context.Context, query Query, window int) ([]Document, error) {
	if window <= 0 {
		window = r.config.WindowSize
	}

	page, err := r.index.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(page.Documents) == 0 {
		return nil, nil
	}

	siblings, err := r.fetchSiblings(ctx, page.Documents)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var results []Document
	emit := func(doc Document) {
		key, _ := doc[r.config.KeyField].(string)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		results = append(results, doc)
	}

	for _, hit := range page.Documents {
		parent, _ := hit[r.config.ParentField].(string)
		key, _ := hit[r.config.KeyField].(string)
		ordered := siblings[parent]

		position := -1
		for i, doc := range ordered {
			if docKey, _ := doc[r.config.KeyField].(string); docKey == key {
				position = i
				break
			}
		}

		emit(hit)
		if position < 0 {
			continue
		}
		for i := position - window; i < position; i++ {
			if i >= 0 {
				emit(ordered[i])
			}
		}
		for i := position + 1; i <= position+window; i++ {
			if i < len(ordered) {
				emit(ordered[i])
			}
		}
	}

	r.logger.Debug("context expansion done",
		"hits", len(page.Documents),
		"window", window,
		"returned", len(results))
	return results, nil
}

// fetchSiblings loads every chunk of every parent touched by the hits with a
// single filtered query and returns them sorted in document order per parent.
func (r *Retriever) fetchSiblings(ctx context.Context, hits []Document) (map[string][]Document, error) {
	var parents []string
	seen := make(map[string]bool)
	for _, hit := range hits {
		parent, _ := hit[r.config.ParentField].(string)
		if parent != "" && !seen[parent] {
			seen[parent] = true
			parents = append(parents, parent)
		}
	}
	if len(parents) == 0 {
		return map[string][]Document{}, nil
	}

	page, err := r.index.Query(ctx, Query{
		Filter: &Filter{Field: r.config.ParentField, Values: parents},
		Top:    r.config.MaxSiblings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling chunks: %w", err)
	}

	grouped := make(map[string][]Document, len(parents))
	for _, doc := range page.Documents {
		parent, _ := doc[r.config.ParentField].(string)
		grouped[parent] = append(grouped[parent], doc)
	}
	for parent := range grouped {
		r.sortChunks(grouped[parent])
	}
	return grouped, nil
}

// sortChunks orders sibling chunks into document order. The sequence field
// is authoritative when both sides carry it; keys with a numeric suffix after
// the last underscore come next, then whole-key numeric comparison, then
// plain string order.
func (r *Retriever) sortChunks(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		si, iok := sequenceOf(docs[i], r.config.SequenceField)
		sj, jok := sequenceOf(docs[j], r.config.SequenceField)
		if iok && jok {
			return si < sj
		}
		a, _ := docs[i][r.config.KeyField].(string)
		b, _ := docs[j][r.config.KeyField].(string)
		return lessChunkKey(a, b)
	})
}

func sequenceOf(doc Document, field string) (int, bool) {
	if field == "" {
		return 0, false
	}
	switch v := doc[field].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func lessChunkKey(a, b string) bool {
	na, aok := chunkOrdinal(a)
	nb, bok := chunkOrdinal(b)
	if aok && bok {
		if len(na) != len(nb) {
			return len(na) < len(nb)
		}
		return na < nb
	}
	if aok != bok {
		return aok
	}
	return a < b
}

// chunkOrdinal extracts the sortable digit string from a chunk key. Content
// hashes are decimal strings far beyond int64 range, so comparison stays on
// the digits themselves: shorter means smaller, equal length compares
// lexicographically.
func chunkOrdinal(key string) (string, bool) {
	candidate := key
	if idx := strings.LastIndex(key, "_"); idx >= 0 {
		candidate = key[idx+1:]
	}
	if candidate == "" {
		return "", false
	}
	trimmed := strings.TrimLeft(candidate, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return trimmed, true
}
