package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Heuristics
// ==========================

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"what is the weather forecast today", []string{"what", "weather", "forecast", "today"}},
		{"a an the", []string{}},
		{"", []string{}},
		{"café crème", []string{"café", "crème"}},
		{"  spaced   out  words ", []string{"spaced", "words"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractKeywords(tt.input))
		})
	}
}

func TestPreferredType(t *testing.T) {
	tests := []struct {
		input    string
		expected models.BackendType
	}{
		{"call the weather API", models.BackendTypeAPI},
		{"talk to a chatbot", models.BackendTypeBot},
		{"run it offline", models.BackendTypeLocalAI},
		{"my custom model", models.BackendTypeCustomAI},
		{"local bot", models.BackendTypeBot},
		{"hello there", models.BackendTypeAny},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, PreferredType(tt.input))
		})
	}
}

func TestAnalyze_Heuristics(t *testing.T) {
	a := New(Config{}, nil, logger.NewTestLogger(t))

	req, err := a.Analyze(context.Background(), "Forecast the weather via REST")

	require.NoError(t, err)
	assert.Equal(t, "Forecast the weather via REST", req.OriginalInput)
	assert.Equal(t, []string{"Forecast", "weather", "REST"}, req.Keywords)
	assert.Equal(t, "forecast", req.Intent)
	assert.Equal(t, SentimentNeutral, req.Sentiment)
	assert.Empty(t, req.Entities)
	assert.Equal(t, models.BackendTypeAPI, req.PreferredType)
}

// ==========================
// Intent service
// ==========================

func TestAnalyze_IntentService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "book a table in Paris", body["text"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"intent":    "reservation",
			"sentiment": "POSITIVE",
			"entities":  []map[string]string{{"text": "Paris", "label": "LOC"}},
		})
	}))
	defer server.Close()

	a := New(Config{IntentURL: server.URL, APIKey: "secret", Timeout: time.Second}, nil, logger.NewTestLogger(t))

	req, err := a.Analyze(context.Background(), "book a table in Paris")

	require.NoError(t, err)
	assert.Equal(t, "reservation", req.Intent)
	assert.Equal(t, "POSITIVE", req.Sentiment)
	assert.Equal(t, []models.Entity{{Text: "Paris", Label: "LOC"}}, req.Entities)
}

func TestAnalyze_IntentServiceFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := New(Config{IntentURL: server.URL}, nil, logger.NewTestLogger(t))

	req, err := a.Analyze(context.Background(), "translate this sentence")

	require.NoError(t, err)
	assert.Equal(t, "translate", req.Intent)
	assert.Equal(t, SentimentNeutral, req.Sentiment)
}

// ==========================
// Text utilities
// ==========================

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "it", "s", "42"}, Tokenize("Hello, World! It's 42."))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestRemoveStopwords(t *testing.T) {
	assert.Equal(t, []string{"weather", "paris"}, RemoveStopwords([]string{"the", "weather", "in", "paris"}, DefaultStopwords))
}

func TestStem(t *testing.T) {
	assert.Equal(t, []string{"model", "bu", "data"}, Stem([]string{"models", "bus", "data"}))
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, []string{"forecast", "cloud"}, Preprocess("What are the forecasts for clouds?", DefaultStopwords))
}
