package docparse

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellasdata/indexpipe/pkg/chunking"
)

func testSummarizerConfig() *SummarizerConfig {
	return &SummarizerConfig{
		Model:              "gpt-4o",
		ChunkTokens:        50,
		ChunkSummaryTokens: 15,
		SummaryTokens:      30,
	}
}

func TestSummarizeShortTextSingleCall(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"a short summary"}}
	summarizer := NewSummarizer(testSummarizerConfig(), completer, chunking.EstimatingCounter{}, nil)

	summary, err := summarizer.Summarize(context.Background(), "short body text")
	require.NoError(t, err)

	assert.Equal(t, "a short summary", summary)
	require.Len(t, completer.requests, 1)
	assert.Equal(t, 30, completer.requests[0].MaxTokens)
	// Word budget is a third of the token budget.
	assert.Contains(t, completer.requests[0].Messages[0].Content, "at most 10 words")
}

func TestSummarizeEmptyText(t *testing.T) {
	completer := &fakeCompleter{}
	summarizer := NewSummarizer(testSummarizerConfig(), completer, chunking.EstimatingCounter{}, nil)

	summary, err := summarizer.Summarize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Empty(t, completer.requests)
}

func TestSummarizeLongTextMapReduce(t *testing.T) {
	// Three paragraphs of ~40 estimated tokens each against a 50-token
	// chunk budget: each lands in its own chunk.
	paragraphs := make([]string, 3)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat(fmt.Sprintf("p%d ", i), 54)
	}
	text := strings.Join(paragraphs, "\n\n")

	completer := &fakeCompleter{replies: []string{"piece one", "piece two", "piece three", "combined summary"}}
	summarizer := NewSummarizer(testSummarizerConfig(), completer, chunking.EstimatingCounter{}, nil)

	summary, err := summarizer.Summarize(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, "combined summary", summary)
	require.Len(t, completer.requests, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 15, completer.requests[i].MaxTokens)
	}
	assert.Equal(t, 30, completer.requests[3].MaxTokens)
	assert.Contains(t, completer.requests[3].Messages[1].Content, "piece two")
}

func TestSummarizePropagatesCompletionErrors(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model unavailable")}
	summarizer := NewSummarizer(testSummarizerConfig(), completer, chunking.EstimatingCounter{}, nil)

	_, err := summarizer.Summarize(context.Background(), "short body text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary generation failed")
}
