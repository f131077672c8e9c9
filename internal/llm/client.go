// Package llm wraps the hosted completion service.
//
// The concrete client is constructed once at process start and injected
// into every consumer (classifier, context builder, orchestrator). There
// is no lazily initialized global.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// CompletionService is the completion-service contract consumed by the
// rest of the engine. Defined here so tests can substitute a mock without
// touching the vendor SDK.
type CompletionService interface {
	// CreateChatCompletion issues one blocking completion call.
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)

	// StreamChatCompletion issues one streaming completion call. The
	// returned stream yields incremental fragments until io.EOF and must
	// be closed by the caller.
	StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error)
}

// Stream is an ordered sequence of incremental completion fragments.
type Stream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Client is the production CompletionService backed by the OpenAI API.
type Client struct {
	api *openai.Client
}

// NewClient creates a completion-service client. The API key must be
// non-empty; presence is validated by config at startup.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return &Client{api: openai.NewClient(apiKey)}, nil
}

// CreateChatCompletion implements CompletionService.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

// StreamChatCompletion implements CompletionService.
func (c *Client) StreamChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (Stream, error) {
	req.Stream = true
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}
	return stream, nil
}
