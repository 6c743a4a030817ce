package adapters

import (
	"context"
	"errors"
	"fmt"

	"ai-junction/internal/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const OpenAIModule = "openai"

const defaultOpenAIModel = "gpt-4o-mini"

type openAICompleter struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIAdapter serves OpenAI and OpenAI-compatible servers. With
// base_url set it can front a local inference server.
func NewOpenAIAdapter(_ context.Context, d models.BackendDescriptor) (Adapter, error) {
	s, err := readLLMSettings(OpenAIModule, d, defaultOpenAIModel)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if s.apiKey != "" {
		opts = append(opts, option.WithAPIKey(s.apiKey))
	} else {
		opts = append(opts, option.WithAPIKey("unused"))
	}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL))
	}

	return &LLMAdapter{
		module: OpenAIModule,
		model:  s.model,
		system: s.system,
		client: &openAICompleter{
			client:    openai.NewClient(opts...),
			model:     s.model,
			maxTokens: s.maxTokens,
		},
	}, nil
}

func (c *openAICompleter) complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &AdapterError{Module: OpenAIModule, Status: apiErr.StatusCode, Err: err}
		}
		return "", &AdapterError{Module: OpenAIModule, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &AdapterError{Module: OpenAIModule, Err: fmt.Errorf("openai returned no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}
