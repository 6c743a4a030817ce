package adapters

import (
	"context"
	"fmt"
	"strings"

	"ai-junction/internal/models"

	"google.golang.org/genai"
)

const GeminiModule = "gemini"

const defaultGeminiModel = "gemini-2.0-flash"

type geminiCompleter struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func NewGeminiAdapter(ctx context.Context, d models.BackendDescriptor) (Adapter, error) {
	s, err := readLLMSettings(GeminiModule, d, defaultGeminiModel)
	if err != nil {
		return nil, err
	}

	cfg := &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &LLMAdapter{
		module: GeminiModule,
		model:  s.model,
		system: s.system,
		client: &geminiCompleter{
			client:    client,
			model:     s.model,
			maxTokens: int32(s.maxTokens),
		},
	}, nil
}

func (c *geminiCompleter) complete(ctx context.Context, system, prompt string) (string, error) {
	genCfg := &genai.GenerateContentConfig{MaxOutputTokens: c.maxTokens}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", &AdapterError{Module: GeminiModule, Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &AdapterError{Module: GeminiModule, Err: fmt.Errorf("gemini returned no candidates")}
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}
	return content.String(), nil
}
