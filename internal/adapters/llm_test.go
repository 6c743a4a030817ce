package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-junction/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func llmDescriptor(module, baseURL string) models.BackendDescriptor {
	return models.BackendDescriptor{
		ID:   "llm-1",
		Type: models.BackendTypeLocalAI,
		ConnectionConfig: map[string]interface{}{
			"module":        module,
			"api_key":       "test-key",
			"model":         "test-model",
			"base_url":      baseURL,
			"system_prompt": "be brief",
		},
	}
}

type fakeCompleter struct {
	system, prompt string
	answer         string
	err            error
}

func (f *fakeCompleter) complete(_ context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.answer, f.err
}

// ==========================
// LLMAdapter
// ==========================

func TestLLMAdapter_Operations(t *testing.T) {
	fake := &fakeCompleter{answer: "sunny"}
	a := &LLMAdapter{module: "fake", model: "m1", system: "sys", client: fake}
	ctx := context.Background()
	req := models.AnalyzedRequest{OriginalInput: "weather today?", Intent: "forecast", Keywords: []string{"weather"}}

	out, err := a.ProcessInput(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "sunny", "model": "m1"}, out)
	assert.Equal(t, "sys", fake.system)
	assert.Contains(t, fake.prompt, "weather today?")
	assert.Contains(t, fake.prompt, "forecast")

	out, err = a.GenerateResponse(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "sunny", out)

	out, err = a.Execute(ctx, req)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "sunny", m["text"])
	assert.Equal(t, "forecast", m["intent"])
}

func TestLLMAdapter_PropagatesErrors(t *testing.T) {
	a := &LLMAdapter{client: &fakeCompleter{err: errors.New("boom")}}

	_, err := a.ProcessInput(context.Background(), models.AnalyzedRequest{})
	assert.Error(t, err)
	_, err = a.Execute(context.Background(), models.AnalyzedRequest{})
	assert.Error(t, err)
}

func TestBuildPrompt_NoIntent(t *testing.T) {
	assert.Equal(t, "hi", buildPrompt(models.AnalyzedRequest{OriginalInput: "hi"}))
}

func TestReadLLMSettings(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]interface{}
		expectErr bool
		validate  func(t *testing.T, s llmSettings)
	}{
		{
			name:   "defaults",
			config: map[string]interface{}{"api_key": "k"},
			validate: func(t *testing.T, s llmSettings) {
				assert.Equal(t, "default-model", s.model)
				assert.Equal(t, int64(defaultMaxTokens), s.maxTokens)
			},
		},
		{
			name:   "json number max tokens",
			config: map[string]interface{}{"api_key": "k", "max_tokens": float64(256)},
			validate: func(t *testing.T, s llmSettings) {
				assert.Equal(t, int64(256), s.maxTokens)
			},
		},
		{
			name:   "local server without key",
			config: map[string]interface{}{"base_url": "http://localhost:11434/v1"},
			validate: func(t *testing.T, s llmSettings) {
				assert.Empty(t, s.apiKey)
			},
		},
		{name: "no key no base url", config: map[string]interface{}{}, expectErr: true},
		{name: "bad max tokens", config: map[string]interface{}{"api_key": "k", "max_tokens": "lots"}, expectErr: true},
		{name: "zero max tokens", config: map[string]interface{}{"api_key": "k", "max_tokens": float64(0)}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := readLLMSettings("test", models.BackendDescriptor{ConnectionConfig: tt.config}, "default-model")
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, s)
			}
		})
	}
}

// ==========================
// Provider wiring
// ==========================

func TestOpenAIAdapter_ChatCompletion(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hello there"}}]
		}`))
	}))
	defer server.Close()

	a, err := NewOpenAIAdapter(context.Background(), llmDescriptor(OpenAIModule, server.URL+"/v1"))
	require.NoError(t, err)

	out, err := a.GenerateResponse(context.Background(), models.AnalyzedRequest{OriginalInput: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Equal(t, "test-model", captured["model"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIAdapter_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	a, err := NewOpenAIAdapter(context.Background(), llmDescriptor(OpenAIModule, server.URL+"/v1"))
	require.NoError(t, err)

	_, err = a.ProcessInput(context.Background(), models.AnalyzedRequest{OriginalInput: "hi"})

	require.Error(t, err)
	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, http.StatusServiceUnavailable, adapterErr.Status)
	assert.True(t, IsTransient(err))
}

func TestAnthropicAdapter_Messages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "test-model",
			"content": [{"type": "text", "text": "hi "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	a, err := NewAnthropicAdapter(context.Background(), llmDescriptor(AnthropicModule, server.URL))
	require.NoError(t, err)

	out, err := a.GenerateResponse(context.Background(), models.AnalyzedRequest{OriginalInput: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestGeminiAdapter_RequiresKey(t *testing.T) {
	_, err := NewGeminiAdapter(context.Background(), models.BackendDescriptor{
		ConnectionConfig: map[string]interface{}{"module": GeminiModule},
	})
	assert.Error(t, err)
}

func TestGeminiAdapter_Constructs(t *testing.T) {
	a, err := NewGeminiAdapter(context.Background(), models.BackendDescriptor{
		ConnectionConfig: map[string]interface{}{"api_key": "k", "model": "gemini-test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", a.(*LLMAdapter).model)
}
