package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const providerOllama = "ollama"

// ollamaCompleter talks to a local Ollama server through its native chat API.
type ollamaCompleter struct {
	client      *api.Client
	model       string
	temperature float32
}

func newOllamaCompleter(baseURL, model string, temperature float32, timeout time.Duration) (*ollamaCompleter, error) {
	// the native API has no /v1 suffix
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse Ollama URL %q: %w", baseURL, err)
	}
	return &ollamaCompleter{
		client:      api.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		model:       model,
		temperature: temperature,
	}, nil
}

func (c *ollamaCompleter) Provider() string { return providerOllama }
func (c *ollamaCompleter) Model() string    { return c.model }

func (c *ollamaCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, tokenUsage, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: &stream,
		Format: []byte(`"json"`),
		Options: map[string]interface{}{
			"temperature": c.temperature,
		},
	}

	var resp api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", tokenUsage{}, fmt.Errorf("ollama chat: %w", ctxErr)
		}
		if se, ok := err.(api.StatusError); ok {
			return "", tokenUsage{}, &StatusError{Provider: providerOllama, StatusCode: se.StatusCode, Body: se.ErrorMessage}
		}
		return "", tokenUsage{}, fmt.Errorf("ollama chat: %w", err)
	}
	if resp.Message.Content == "" {
		return "", tokenUsage{}, fmt.Errorf("%w: empty completion", ErrProviderResponse)
	}

	return resp.Message.Content, tokenUsage{Prompt: resp.PromptEvalCount, Completion: resp.EvalCount}, nil
}
