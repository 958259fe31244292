package chunking

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports how many tokens a piece of text consumes for the
// embedding model in use. Chunk budgets are expressed in these tokens.
type TokenCounter interface {
	Count(text string) int
}

// EstimatingCounter approximates token counts from character length without a
// vocabulary. Suitable for tests and for deployments where pulling BPE data is
// undesirable; accuracy is within the overlap slack for typical prose.
type EstimatingCounter struct {
	// CharsPerToken controls the estimate; 4 matches OpenAI's published
	// rule of thumb for English text.
	CharsPerToken int
}

// Count returns the estimated token count for text.
func (e EstimatingCounter) Count(text string) int {
	cpt := e.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	return len(text) / cpt
}

// TiktokenCounter counts tokens with the exact BPE encoding of a model.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding used by the given model name
// (e.g. "text-embedding-3-large").
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding for model %q: %w", model, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

// Count returns the exact token count for text under the loaded encoding.
func (t *TiktokenCounter) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
