package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider and Completer on top of the OpenAI (or
// Azure OpenAI) API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a provider against the public OpenAI endpoint.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// NewAzureOpenAIProvider creates a provider against an Azure OpenAI
// deployment endpoint.
func NewAzureOpenAIProvider(apiKey, endpoint string) *OpenAIProvider {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// CreateEmbedding returns the embedding vector for text under the given model.
func (p *OpenAIProvider) CreateEmbedding(ctx context.Context, text, model string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("provider returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// CreateCompletion runs a chat completion and maps the provider response to
// the gateway's shape.
func (p *OpenAIProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONResponse {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no completion choices")
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:          choice.Message.Content,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
