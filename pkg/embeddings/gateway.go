// Package embeddings wraps the embedding and completion provider behind a
// gateway that recovers from token-limit errors by truncating and retrying,
// retries transient failures with jittered exponential backoff, and degrades
// to an empty vector instead of failing a whole batch on one bad text.
package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
)

// Provider is the raw embedding capability.
type Provider interface {
	CreateEmbedding(ctx context.Context, text, model string) ([]float32, error)
}

// Message is one chat turn sent to the completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks the provider for a generated string.
type CompletionRequest struct {
	Model        string    `json:"model"`
	Messages     []Message `json:"messages"`
	Temperature  float32   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	JSONResponse bool      `json:"json_response"`
}

// CompletionResponse carries the generated content and usage accounting.
type CompletionResponse struct {
	Content          string `json:"content"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Completer is the raw completion capability.
type Completer interface {
	CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// GatewayConfig holds configuration for the embedding gateway.
type GatewayConfig struct {
	Model string `json:"model"` // embedding model name

	// Fallbacks when the provider's token-limit error is unparseable.
	FallbackMaxTokens       int     `json:"fallback_max_tokens"`
	FallbackRequestedTokens int     `json:"fallback_requested_tokens"`
	TruncateSafetyMargin    float64 `json:"truncate_safety_margin"`

	// Retry policy for transient provider errors.
	RetryInitialWait time.Duration `json:"retry_initial_wait"`
	RetryMaxWait     time.Duration `json:"retry_max_wait"`
	RetryAttempts    uint64        `json:"retry_attempts"`
}

// DefaultGatewayConfig returns the default gateway configuration: a 10%
// truncation safety margin and up to 6 attempts with 1-20s jittered waits.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Model:                   "text-embedding-3-large",
		FallbackMaxTokens:       8192,
		FallbackRequestedTokens: 10000,
		TruncateSafetyMargin:    0.9,
		RetryInitialWait:        time.Second,
		RetryMaxWait:            20 * time.Second,
		RetryAttempts:           6,
	}
}

// Cache stores computed embeddings keyed by model and text.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Set(ctx context.Context, model, text string, embedding []float32)
}

// Gateway mediates all embedding and completion traffic.
type Gateway struct {
	provider  Provider
	completer Completer
	cache     Cache
	config    *GatewayConfig
	logger    *slog.Logger
}

// NewGateway creates a gateway. Cache may be nil; completer may be nil when
// only embeddings are needed.
func NewGateway(provider Provider, completer Completer, cache Cache, config *GatewayConfig, logger *slog.Logger) *Gateway {
	if config == nil {
		config = DefaultGatewayConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider:  provider,
		completer: completer,
		cache:     cache,
		config:    config,
		logger:    logger.With("component", "embedding-gateway"),
	}
}

// Embed returns the embedding for text, or nil when it cannot be computed.
// A token-limit error triggers one truncate-and-retry; any other failure, or
// a second one, degrades to nil so that a single bad document never aborts
// the batch it travels in.
func (g *Gateway) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return nil
	}
	vec, err := g.EmbedStrict(ctx, text)
	if err != nil {
		g.logger.Warn("embedding degraded to empty vector", "error", err, "text_len", len(text))
		return nil
	}
	return vec
}

// EmbedStrict returns the embedding for text or the error that prevented it,
// after the same truncation recovery Embed applies. Query-time callers use
// this form because an unanswerable query should fail loudly.
func (g *Gateway) EmbedStrict(ctx context.Context, text string) ([]float32, error) {
	if g.cache != nil {
		if vec, ok := g.cache.Get(ctx, g.config.Model, text); ok {
			return vec, nil
		}
	}

	vec, err := g.embedWithRetry(ctx, text)
	if err != nil {
		ratio, tokenLimited := truncationRatio(err, g.config)
		if !tokenLimited || ratio >= 1 {
			// A ratio at or above 1 means the parsed numbers offer no
			// shorter text to retry with.
			return nil, err
		}
		truncated := truncateText(text, ratio)
		g.logger.Info("truncating text to fit token limit",
			"original_len", len(text),
			"truncated_len", len(truncated),
		)
		vec, err = g.embedWithRetry(ctx, truncated)
		if err != nil {
			return nil, fmt.Errorf("embedding failed after truncation: %w", err)
		}
	}

	if g.cache != nil && len(vec) > 0 {
		g.cache.Set(ctx, g.config.Model, text, vec)
	}
	return vec, nil
}

// Complete runs a chat completion under the gateway's retry policy.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if g.completer == nil {
		return nil, fmt.Errorf("no completion provider configured")
	}
	var resp *CompletionResponse
	err := backoff.Retry(func() error {
		var err error
		resp, err = g.completer.CreateCompletion(ctx, req)
		return err
	}, g.retryPolicy(ctx))
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return resp, nil
}

func (g *Gateway) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := backoff.Retry(func() error {
		var err error
		vec, err = g.provider.CreateEmbedding(ctx, text, g.config.Model)
		if err != nil && isTokenLimitError(err) {
			// Resubmitting the same text cannot succeed; let the
			// caller truncate instead.
			return backoff.Permanent(err)
		}
		return err
	}, g.retryPolicy(ctx))
	return vec, err
}

func (g *Gateway) retryPolicy(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.config.RetryInitialWait
	policy.MaxInterval = g.config.RetryMaxWait
	policy.MaxElapsedTime = 0
	attempts := g.config.RetryAttempts
	if attempts == 0 {
		attempts = 6
	}
	return backoff.WithContext(backoff.WithMaxRetries(policy, attempts-1), ctx)
}

// truncateText cuts text to ratio of its byte length, backing the cut up to
// the nearest rune boundary so the result stays valid UTF-8.
func truncateText(text string, ratio float64) string {
	cut := int(float64(len(text)) * ratio)
	if cut >= len(text) {
		return text
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

var (
	maxContextPattern = regexp.MustCompile(`maximum context length is (\d+)`)
	requestedPattern  = regexp.MustCompile(`requested (\d+) tokens`)
)

func isTokenLimitError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "maximum context length") && strings.Contains(msg, "tokens")
}

// truncationRatio parses the provider's token-limit error and returns the
// character ratio the input should be cut to, with the configured safety
// margin applied. The second return is false when err is not a token-limit
// error at all.
func truncationRatio(err error, config *GatewayConfig) (float64, bool) {
	if !isTokenLimitError(err) {
		return 0, false
	}
	msg := err.Error()

	maxTokens := config.FallbackMaxTokens
	if m := maxContextPattern.FindStringSubmatch(msg); len(m) == 2 {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			maxTokens = n
		}
	}
	requested := config.FallbackRequestedTokens
	if m := requestedPattern.FindStringSubmatch(msg); len(m) == 2 {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			requested = n
		}
	}
	if requested <= 0 {
		return 0, false
	}
	return float64(maxTokens) / float64(requested) * config.TruncateSafetyMargin, true
}
