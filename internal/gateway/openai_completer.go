package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// openAICompleter talks to any OpenAI-compatible endpoint (OpenAI, OpenRouter).
type openAICompleter struct {
	client      *openaigo.Client
	model       string
	temperature float32
}

func newOpenAICompleter(apiKey, baseURL, model string, temperature float32, timeout time.Duration) *openAICompleter {
	cfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &openAICompleter{
		client:      openaigo.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
	}
}

func (c *openAICompleter) Provider() string { return providerOpenAI }
func (c *openAICompleter) Model() string    { return c.model }

func (c *openAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, tokenUsage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openaigo.APIError
		if errors.As(err, &apiErr) {
			return "", tokenUsage{}, &StatusError{Provider: providerOpenAI, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", tokenUsage{}, fmt.Errorf("openai completion: %w", ctxErr)
		}
		return "", tokenUsage{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", tokenUsage{}, fmt.Errorf("%w: empty completion", ErrProviderResponse)
	}

	usage := tokenUsage{Prompt: resp.Usage.PromptTokens, Completion: resp.Usage.CompletionTokens}
	return resp.Choices[0].Message.Content, usage, nil
}
