package adapters

import (
	"context"
	"fmt"
	"strings"

	"ai-junction/internal/models"
)

// Connection config keys shared by the LLM-backed modules.
const (
	ConfigModel        = "model"
	ConfigBaseURL      = "base_url"
	ConfigSystemPrompt = "system_prompt"
	ConfigMaxTokens    = "max_tokens"
)

const defaultMaxTokens = 1024

// completer sends one prompt to a provider and returns the text answer.
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// LLMAdapter serves every dispatch operation through a single completion call.
type LLMAdapter struct {
	module string
	model  string
	system string
	client completer
}

type llmSettings struct {
	apiKey    string
	model     string
	baseURL   string
	system    string
	maxTokens int64
}

func readLLMSettings(module string, d models.BackendDescriptor, defaultModel string) (llmSettings, error) {
	s := llmSettings{
		apiKey:    d.ConfigString(models.ConfigAPIKey),
		model:     d.ConfigString(ConfigModel),
		baseURL:   d.ConfigString(ConfigBaseURL),
		system:    d.ConfigString(ConfigSystemPrompt),
		maxTokens: defaultMaxTokens,
	}
	if s.model == "" {
		s.model = defaultModel
	}
	// A base_url points at a self-hosted endpoint that may not need a key.
	if s.apiKey == "" && s.baseURL == "" {
		return s, fmt.Errorf("%s module: connection_config.api_key is required", module)
	}

	switch v := d.ConnectionConfig[ConfigMaxTokens].(type) {
	case nil:
	case float64:
		s.maxTokens = int64(v)
	case int:
		s.maxTokens = int64(v)
	case int64:
		s.maxTokens = v
	default:
		return s, fmt.Errorf("%s module: max_tokens must be a number, got %T", module, v)
	}
	if s.maxTokens <= 0 {
		return s, fmt.Errorf("%s module: max_tokens must be positive", module)
	}
	return s, nil
}

// ProcessInput returns {"text": answer, "model": model}.
func (a *LLMAdapter) ProcessInput(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	text, err := a.client.complete(ctx, a.system, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	return map[string]any{"text": text, "model": a.model}, nil
}

// GenerateResponse returns the answer as a plain string.
func (a *LLMAdapter) GenerateResponse(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	return a.client.complete(ctx, a.system, buildPrompt(req))
}

// Execute returns the answer along with the routing context it was produced for.
func (a *LLMAdapter) Execute(ctx context.Context, req models.AnalyzedRequest) (any, error) {
	text, err := a.client.complete(ctx, a.system, buildPrompt(req))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"text":     text,
		"model":    a.model,
		"module":   a.module,
		"intent":   req.Intent,
		"keywords": req.Keywords,
	}, nil
}

// buildPrompt forwards the raw input, with the detected intent as a hint
// when one is known.
func buildPrompt(req models.AnalyzedRequest) string {
	intent := strings.TrimSpace(req.Intent)
	if intent == "" {
		return req.OriginalInput
	}
	return fmt.Sprintf("%s\n\n(detected intent: %s)", req.OriginalInput, intent)
}
