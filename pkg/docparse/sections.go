// Package docparse splits decoded document text into indexable units: titled
// sections for descriptive documents and structured processes for procedural
// ones. Anything that needs generated text (titles, summaries, process
// structure) goes through a completion model.
package docparse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hellasdata/indexpipe/pkg/embeddings"
)

// Completer is the completion capability sections and summaries rely on.
// *embeddings.Gateway satisfies it.
type Completer interface {
	Complete(ctx context.Context, req embeddings.CompletionRequest) (*embeddings.CompletionResponse, error)
}

// Section is one titled slice of a document.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

var numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)

// SplitSections cuts document text into sections at header lines. Text before
// the first header becomes an untitled leading section; callers assign it a
// title via EnsureTitles.
func SplitSections(text string) []Section {
	var sections []Section
	current := Section{}
	var lines []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(lines, "\n"))
		if content != "" || current.Title != "" {
			current.Content = content
			sections = append(sections, current)
		}
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if isHeaderLine(line) {
			flush()
			current = Section{Title: headerTitle(line)}
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return sections
}

// isHeaderLine applies the header heuristics: short, no sentence punctuation
// at the end, and shaped like a markdown, numbered or all-caps heading.
func isHeaderLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len([]rune(trimmed)) > 80 {
		return false
	}
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, ";") {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	if numberedHeading.MatchString(trimmed) {
		return true
	}
	return isAllCaps(trimmed)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			letters++
		}
	}
	// Two-letter acronyms inside running text are not headings.
	return letters >= 3
}

func headerTitle(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// TitleInferrer names an untitled section from its content.
type TitleInferrer interface {
	InferTitle(ctx context.Context, content string) (string, error)
}

// LLMTitleInferrer asks a completion model for a section title.
type LLMTitleInferrer struct {
	completer Completer
	model     string
}

// NewLLMTitleInferrer creates a title inferrer on completer.
func NewLLMTitleInferrer(completer Completer, model string) *LLMTitleInferrer {
	return &LLMTitleInferrer{completer: completer, model: model}
}

// InferTitle generates a short title for content.
func (i *LLMTitleInferrer) InferTitle(ctx context.Context, content string) (string, error) {
	resp, err := i.completer.Complete(ctx, embeddings.CompletionRequest{
		Model: i.model,
		Messages: []embeddings.Message{
			{Role: "system", Content: "You name document sections. Reply with a short title of at most ten words, nothing else."},
			{Role: "user", Content: content},
		},
		Temperature: 0.2,
		MaxTokens:   30,
	})
	if err != nil {
		return "", fmt.Errorf("failed to infer title: %w", err)
	}
	return strings.Trim(strings.TrimSpace(resp.Content), `"`), nil
}

// EnsureTitles fills in missing section titles. When inferrer is nil or
// fails, untitled sections fall back to "<docTitle> (part N)".
func EnsureTitles(ctx context.Context, sections []Section, inferrer TitleInferrer, docTitle string) []Section {
	for i := range sections {
		if sections[i].Title != "" {
			continue
		}
		if inferrer != nil {
			if title, err := inferrer.InferTitle(ctx, sections[i].Content); err == nil && title != "" {
				sections[i].Title = title
				continue
			}
		}
		sections[i].Title = fmt.Sprintf("%s (part %d)", docTitle, i+1)
	}
	return sections
}
