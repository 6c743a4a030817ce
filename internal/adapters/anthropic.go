package adapters

import (
	"context"
	"errors"
	"strings"

	"ai-junction/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const AnthropicModule = "anthropic"

const defaultAnthropicModel = "claude-sonnet-4-20250514"

type anthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicAdapter(_ context.Context, d models.BackendDescriptor) (Adapter, error) {
	s, err := readLLMSettings(AnthropicModule, d, defaultAnthropicModel)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(s.apiKey),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL))
	}

	return &LLMAdapter{
		module: AnthropicModule,
		model:  s.model,
		system: s.system,
		client: &anthropicCompleter{
			client:    anthropic.NewClient(opts...),
			model:     s.model,
			maxTokens: s.maxTokens,
		},
	}, nil
}

func (c *anthropicCompleter) complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &AdapterError{Module: AnthropicModule, Status: apiErr.StatusCode, Err: err}
		}
		return "", &AdapterError{Module: AnthropicModule, Err: err}
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}
