package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// chatClient is the slice of the OpenAI client the provider needs.
// Interface for testing.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI proposes fixes through any OpenAI-compatible chat completion
// endpoint (OpenAI itself, or OpenRouter via BaseURL).
type OpenAI struct {
	client  chatClient
	model   string
	retries int
	backoff time.Duration
}

// NewOpenAI creates a provider against apiKey/model. baseURL overrides the
// endpoint for OpenAI-compatible gateways; empty uses the default.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		retries: 3,
		backoff: 2 * time.Second,
	}
}

// ProposeFixes sends the fix prompt and parses the JSON reply. Rate limit
// responses are retried with exponential backoff.
func (o *OpenAI) ProposeFixes(ctx context.Context, req Request) (*Response, error) {
	prompt := buildPrompt(req)
	log.Printf("[PROVIDER] requesting fixes for %d failures across %d files", len(req.Failures), len(req.Files))

	reply, err := o.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp, err := parseResponse(reply)
	if err != nil {
		return nil, err
	}
	log.Printf("[PROVIDER] model returned %d fixes", len(resp.Patches))
	return resp, nil
}

func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < o.retries; attempt++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.1,
			MaxTokens:   4096,
		})
		if err != nil {
			if isRateLimited(err) && attempt < o.retries-1 {
				wait := o.backoff * (1 << attempt)
				log.Printf("[PROVIDER] rate limited, retrying in %s", wait)
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
			lastErr = fmt.Errorf("chat completion: %w", err)
			break
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model returned no choices")
			break
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	return strings.Contains(err.Error(), "429")
}
