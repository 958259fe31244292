package chunking

import (
	"log/slog"
	"regexp"
	"strings"
)

// Chunker splits section text into token-bounded chunks along paragraph
// boundaries, seeding each chunk after the first with a trailing span of the
// previous chunk so that adjacent chunks share context.
type Chunker struct {
	config  *ChunkerConfig
	counter TokenCounter
	logger  *slog.Logger
}

// ChunkerConfig holds configuration for the chunker.
type ChunkerConfig struct {
	ChunkSize int `json:"chunk_size"` // Target chunk size in tokens
	Overlap   int `json:"overlap"`    // Tokens of context carried into the next chunk
}

// DefaultChunkerConfig returns the default chunking configuration.
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		ChunkSize: 1500,
		Overlap:   150,
	}
}

// NewChunker creates a chunker. A nil config selects the defaults and a nil
// counter selects the character-length estimator.
func NewChunker(config *ChunkerConfig, counter TokenCounter, logger *slog.Logger) *Chunker {
	if config == nil {
		config = DefaultChunkerConfig()
	}
	if counter == nil {
		counter = EstimatingCounter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		config:  config,
		counter: counter,
		logger:  logger.With("component", "chunker"),
	}
}

var paragraphBoundary = regexp.MustCompile(`\n+`)

// Chunk splits content into chunks of at most ChunkSize tokens, except when a
// single paragraph alone exceeds the budget, in which case that paragraph is
// kept intact and the chunk may run over. Paragraph order is preserved and the
// call is stateless; the same input always produces the same chunks.
func (c *Chunker) Chunk(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var paragraphs []string
	var tokens []int
	for _, p := range paragraphBoundary.Split(content, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, p)
		tokens = append(tokens, c.counter.Count(p))
	}

	var chunks []string
	var current []string
	currentTokens := 0

	for i, paragraph := range paragraphs {
		if currentTokens+tokens[i] > c.config.ChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current, currentTokens = c.overlapSuffix(current)
		}
		current = append(current, paragraph)
		currentTokens += tokens[i]
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}

	c.logger.Debug("content chunked",
		"paragraphs", len(paragraphs),
		"chunks", len(chunks),
		"chunk_size", c.config.ChunkSize,
		"overlap", c.config.Overlap,
	)

	return chunks
}

// overlapSuffix walks backward over the paragraphs of a just-closed chunk and
// returns the longest trailing run whose cumulative token count stays within
// the overlap budget, along with that count.
func (c *Chunker) overlapSuffix(closed []string) ([]string, int) {
	var overlap []string
	overlapTokens := 0
	for i := len(closed) - 1; i >= 0; i-- {
		pTokens := c.counter.Count(closed[i])
		if overlapTokens+pTokens > c.config.Overlap {
			break
		}
		overlap = append([]string{closed[i]}, overlap...)
		overlapTokens += pTokens
	}
	return overlap, overlapTokens
}
