package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider fails with the queued errors, in order, before succeeding.
// Successful calls echo the text length so truncation is observable.
type fakeProvider struct {
	errs  []error
	calls []string
}

func (f *fakeProvider) CreateEmbedding(_ context.Context, text, _ string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []float32{float32(len(text))}, nil
}

func testConfig() *GatewayConfig {
	cfg := DefaultGatewayConfig()
	cfg.RetryInitialWait = time.Millisecond
	cfg.RetryMaxWait = 2 * time.Millisecond
	return cfg
}

func TestEmbedSuccess(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	vec := g.Embed(context.Background(), "hello world")
	require.Len(t, vec, 1)
	assert.Len(t, provider.calls, 1)
}

func TestEmbedEmptyText(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	assert.Nil(t, g.Embed(context.Background(), ""))
	assert.Empty(t, provider.calls, "empty text must not reach the provider")
}

func TestEmbedTokenLimitTruncatesAndRetries(t *testing.T) {
	tokenErr := errors.New("This model's maximum context length is 8192 tokens, however you requested 9000 tokens")
	provider := &fakeProvider{errs: []error{tokenErr}}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	text := make([]byte, 10000)
	for i := range text {
		text[i] = 'a'
	}
	vec := g.Embed(context.Background(), string(text))

	require.Len(t, provider.calls, 2, "one truncated retry expected")
	// ratio = 8192/9000 * 0.9 = 0.8192 of the original length.
	assert.Len(t, provider.calls[1], 8192)
	require.Len(t, vec, 1)
	assert.Equal(t, float32(8192), vec[0])
}

func TestEmbedTokenLimitUnparseableUsesFallbacks(t *testing.T) {
	tokenErr := errors.New("maximum context length exceeded; too many tokens")
	provider := &fakeProvider{errs: []error{tokenErr}}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	text := make([]byte, 10000)
	for i := range text {
		text[i] = 'a'
	}
	g.Embed(context.Background(), string(text))

	require.Len(t, provider.calls, 2)
	// Fallbacks: 8192/10000 * 0.9 = 0.73728.
	assert.Len(t, provider.calls[1], 7372)
}

func TestEmbedTokenLimitRatioAboveOneDegrades(t *testing.T) {
	// Requested below the fallback max: the computed cut ratio exceeds 1,
	// so there is no shorter text to retry with.
	tokenErr := errors.New("maximum context length exceeded; you requested 5000 tokens")
	provider := &fakeProvider{errs: []error{tokenErr}}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	var vec []float32
	require.NotPanics(t, func() {
		vec = g.Embed(context.Background(), "short text, long token count")
	})
	assert.Nil(t, vec)
	assert.Len(t, provider.calls, 1, "no retry when truncation cannot shorten the text")
}

func TestTruncateTextKeepsRuneBoundary(t *testing.T) {
	text := "αβγδε" // 10 bytes, 5 runes
	truncated := truncateText(text, 0.5)
	assert.True(t, utf8.ValidString(truncated))
	assert.Equal(t, "αβ", truncated)

	assert.Equal(t, text, truncateText(text, 1.5))
	assert.Equal(t, "", truncateText(text, 0))
}

func TestEmbedSecondFailureDegrades(t *testing.T) {
	tokenErr := errors.New("maximum context length is 100, requested 200 tokens")
	provider := &fakeProvider{errs: []error{tokenErr, tokenErr}}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	vec := g.Embed(context.Background(), "some text that keeps failing on tokens")
	assert.Nil(t, vec, "second token-limit failure must degrade to empty")
}

func TestEmbedTransientErrorRetried(t *testing.T) {
	provider := &fakeProvider{errs: []error{errors.New("connection reset"), errors.New("connection reset")}}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	vec := g.Embed(context.Background(), "retry me")
	require.NotNil(t, vec)
	assert.Len(t, provider.calls, 3)
}

func TestEmbedStrictSurfacesFailure(t *testing.T) {
	boom := errors.New("server unavailable")
	provider := &fakeProvider{errs: []error{boom, boom, boom, boom, boom, boom, boom}}
	g := NewGateway(provider, nil, nil, testConfig(), nil)

	_, err := g.EmbedStrict(context.Background(), "query text")
	require.Error(t, err)
	// Six attempts, then give up.
	assert.Len(t, provider.calls, 6)
}

type mapCache struct {
	entries map[string][]float32
	sets    int
}

func (m *mapCache) Get(_ context.Context, model, text string) ([]float32, bool) {
	vec, ok := m.entries[model+"|"+text]
	return vec, ok
}

func (m *mapCache) Set(_ context.Context, model, text string, embedding []float32) {
	m.entries[model+"|"+text] = embedding
	m.sets++
}

func TestEmbedUsesCache(t *testing.T) {
	provider := &fakeProvider{}
	cache := &mapCache{entries: map[string][]float32{}}
	g := NewGateway(provider, nil, cache, testConfig(), nil)

	first := g.Embed(context.Background(), "cached text")
	second := g.Embed(context.Background(), "cached text")

	assert.Equal(t, first, second)
	assert.Len(t, provider.calls, 1, "second call must be served from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestTruncationRatio(t *testing.T) {
	cfg := DefaultGatewayConfig()

	tests := []struct {
		name      string
		err       error
		wantRatio float64
		wantOK    bool
	}{
		{
			name:      "fully parseable",
			err:       errors.New("maximum context length is 8192, requested 9000 tokens"),
			wantRatio: 8192.0 / 9000.0 * 0.9,
			wantOK:    true,
		},
		{
			name:   "not a token error",
			err:    errors.New("rate limit exceeded"),
			wantOK: false,
		},
		{
			name:      "only max parseable",
			err:       errors.New("maximum context length is 4096 tokens for this model"),
			wantRatio: 4096.0 / 10000.0 * 0.9,
			wantOK:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, ok := truncationRatio(tt.err, cfg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.wantRatio, ratio, 1e-9)
			}
		})
	}
}

// fakeCompleter returns a canned completion.
type fakeCompleter struct {
	resp *CompletionResponse
	err  error
	last CompletionRequest
}

func (f *fakeCompleter) CreateCompletion(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestComplete(t *testing.T) {
	completer := &fakeCompleter{resp: &CompletionResponse{Content: "a summary", FinishReason: "stop"}}
	g := NewGateway(&fakeProvider{}, completer, nil, testConfig(), nil)

	resp, err := g.Complete(context.Background(), CompletionRequest{
		Model:    "gpt-4.1",
		Messages: []Message{{Role: "user", Content: "summarize"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a summary", resp.Content)
	assert.Equal(t, "gpt-4.1", completer.last.Model)
}

func TestCompleteWithoutCompleter(t *testing.T) {
	g := NewGateway(&fakeProvider{}, nil, nil, testConfig(), nil)
	_, err := g.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}
