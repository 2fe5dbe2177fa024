package narrative

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"price-analyst/internal/resilience"
)

// Completer sends a system and user prompt to a chat model.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient implements Completer using the OpenAI API or any
// compatible endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	retry       resilience.RetryConfig
}

// ClientOption configures an OpenAIClient.
type ClientOption func(*OpenAIClient, *openai.ClientConfig)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(u string) ClientOption {
	return func(_ *OpenAIClient, cfg *openai.ClientConfig) {
		if u != "" {
			cfg.BaseURL = u
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) { c.temperature = float32(t) }
}

// WithRetry sets the backoff used for rate limits and server errors.
func WithRetry(r resilience.RetryConfig) ClientOption {
	return func(c *OpenAIClient, _ *openai.ClientConfig) {
		if r.Retryable == nil {
			r.Retryable = transient
		}
		c.retry = r
	}
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(apiKey, model string, opts ...ClientOption) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	c := &OpenAIClient{model: model, retry: resilience.DefaultRetryConfig()}
	c.retry.Retryable = transient
	for _, opt := range opts {
		opt(c, &cfg)
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// CompleteWithSystem sends a prompt with system message to the LLM. Rate
// limits and server errors are retried until ctx ends.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := resilience.RetryWithResult(ctx, c.retry, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// transient reports whether an API failure may succeed on retry.
func transient(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return false
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Model returns the model name.
func (c *OpenAIClient) Model() string {
	return c.model
}
