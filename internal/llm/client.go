// Package llm wraps the language-model endpoint used for speaker naming and
// minutes extraction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type Prompt struct {
	System string
	User   string
	// JSON asks the endpoint for a JSON object response when it supports it.
	JSON bool
}

type Client interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Seed        *int
	MaxTokens   int
	Logger      *zap.Logger
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint,
// including Ollama's /v1 API.
type OpenAIClient struct {
	client *openai.Client
	opts   Options
}

func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("llm model is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}

	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), opts: opts}, nil
}

// requestTemperature maps 0 to the smallest positive float32, because
// go-openai omits a zero temperature and the server would use its default.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.User})

	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: requestTemperature(c.opts.Temperature),
		Seed:        c.opts.Seed,
		MaxTokens:   c.opts.MaxTokens,
	}
	if prompt.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	c.opts.Logger.Debug("llm request", zap.String("model", c.opts.Model), zap.Int("prompt_chars", len(prompt.System)+len(prompt.User)))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.opts.Logger.Debug("llm response", zap.Int("chars", len(content)), zap.String("finish_reason", string(resp.Choices[0].FinishReason)))
	return content, nil
}
