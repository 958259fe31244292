package docparse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hellasdata/indexpipe/pkg/chunking"
	"github.com/hellasdata/indexpipe/pkg/embeddings"
)

// SummarizerConfig controls summary generation.
type SummarizerConfig struct {
	Model              string  `json:"model"`
	ChunkTokens        int     `json:"chunk_tokens"`
	ChunkSummaryTokens int     `json:"chunk_summary_tokens"`
	SummaryTokens      int     `json:"summary_tokens"`
	Temperature        float32 `json:"temperature"`
}

// DefaultSummarizerConfig returns the default summarizer configuration.
func DefaultSummarizerConfig() *SummarizerConfig {
	return &SummarizerConfig{
		ChunkTokens:        4000,
		ChunkSummaryTokens: 200,
		SummaryTokens:      1000,
		Temperature:        0.3,
	}
}

// Summarizer produces section descriptions. Text longer than the model can
// digest at once is summarized map-reduce style: each chunk gets a short
// summary, and the concatenation gets the final one.
type Summarizer struct {
	config    *SummarizerConfig
	completer Completer
	counter   chunking.TokenCounter
	logger    *slog.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(config *SummarizerConfig, completer Completer, counter chunking.TokenCounter, logger *slog.Logger) *Summarizer {
	if config == nil {
		config = DefaultSummarizerConfig()
	}
	if counter == nil {
		counter = chunking.EstimatingCounter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		config:    config,
		completer: completer,
		counter:   counter,
		logger:    logger.With("component", "summarizer"),
	}
}

// Summarize returns a description of text within the configured token budget.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if s.counter.Count(text) <= s.config.ChunkTokens {
		return s.summarizeOnce(ctx, text, s.config.SummaryTokens)
	}

	chunker := chunking.NewChunker(&chunking.ChunkerConfig{
		ChunkSize: s.config.ChunkTokens,
		Overlap:   0,
	}, s.counter, s.logger)
	pieces := chunker.Chunk(text)
	s.logger.Debug("summarizing in pieces", "pieces", len(pieces))

	summaries := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		summary, err := s.summarizeOnce(ctx, piece, s.config.ChunkSummaryTokens)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, summary)
	}
	return s.summarizeOnce(ctx, strings.Join(summaries, "\n\n"), s.config.SummaryTokens)
}

func (s *Summarizer) summarizeOnce(ctx context.Context, text string, maxTokens int) (string, error) {
	// Rough words-per-token conversion keeps the instruction in units the
	// model follows reliably.
	words := maxTokens / 3
	resp, err := s.completer.Complete(ctx, embeddings.CompletionRequest{
		Model: s.config.Model,
		Messages: []embeddings.Message{
			{Role: "system", Content: fmt.Sprintf(
				"You summarize banking documentation. Reply with a factual summary of at most %d words. Keep product names, amounts and conditions exact.", words)},
			{Role: "user", Content: text},
		},
		Temperature: s.config.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
