// Package analyzer turns raw user input into an AnalyzedRequest.
package analyzer

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	httpclient "ai-junction/internal/common/http"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"
)

const (
	SentimentNeutral = "neutral"
	minKeywordLength = 4
)

// Analyzer produces the structured request used for selection and dispatch.
type Analyzer interface {
	Analyze(ctx context.Context, input string) (models.AnalyzedRequest, error)
}

type typeIndicator struct {
	backendType models.BackendType
	words       []string
}

// Checked in order; the first type with a matching word wins.
var typeIndicators = []typeIndicator{
	{models.BackendTypeAPI, []string{"api", "rest", "endpoint"}},
	{models.BackendTypeBot, []string{"bot", "chatbot"}},
	{models.BackendTypeLocalAI, []string{"local", "offline"}},
	{models.BackendTypeCustomAI, []string{"custom", "specific"}},
}

type Config struct {
	// IntentURL, when set, is asked for intent, entities and sentiment.
	IntentURL string
	APIKey    string
	Timeout   time.Duration
}

// intentResponse is the body returned by the intent service.
type intentResponse struct {
	Intent    string          `json:"intent"`
	Sentiment string          `json:"sentiment"`
	Entities  []models.Entity `json:"entities"`
}

type HeuristicAnalyzer struct {
	config    Config
	client    *httpclient.Client
	stopwords []string
	logger    logger.Logger
}

func New(cfg Config, client *httpclient.Client, log logger.Logger) *HeuristicAnalyzer {
	if client == nil {
		client = httpclient.NewClient(0)
	}
	return &HeuristicAnalyzer{
		config:    cfg,
		client:    client,
		stopwords: DefaultStopwords,
		logger:    log.WithFields(map[string]interface{}{"component": "analyzer"}),
	}
}

// Analyze never fails on intent service errors; it falls back to heuristics.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, input string) (models.AnalyzedRequest, error) {
	req := models.AnalyzedRequest{
		OriginalInput: input,
		Keywords:      ExtractKeywords(input),
		Intent:        a.heuristicIntent(input),
		Entities:      []models.Entity{},
		Sentiment:     SentimentNeutral,
		PreferredType: PreferredType(input),
	}

	if a.config.IntentURL != "" {
		if resp, err := a.classify(ctx, input); err != nil {
			a.logger.Warn("Intent service unavailable, using heuristics", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			if resp.Intent != "" {
				req.Intent = resp.Intent
			}
			if resp.Sentiment != "" {
				req.Sentiment = resp.Sentiment
			}
			if resp.Entities != nil {
				req.Entities = resp.Entities
			}
		}
	}

	a.logger.Debug("Input analysis", map[string]interface{}{
		"keywords":       req.Keywords,
		"intent":         req.Intent,
		"preferred_type": string(req.PreferredType),
	})
	return req, nil
}

func (a *HeuristicAnalyzer) classify(ctx context.Context, input string) (*intentResponse, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	headers := map[string]string{}
	if a.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.config.APIKey
	}

	var resp intentResponse
	if err := a.client.PostJSON(ctx, a.config.IntentURL, headers, map[string]string{"text": input}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// heuristicIntent is the first content word of the input.
func (a *HeuristicAnalyzer) heuristicIntent(input string) string {
	tokens := Preprocess(input, a.stopwords)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// ExtractKeywords returns whitespace-separated words longer than three characters, in order.
func ExtractKeywords(input string) []string {
	keywords := []string{}
	for _, word := range strings.Fields(input) {
		if utf8.RuneCountInString(word) >= minKeywordLength {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// PreferredType maps indicator words in the input to a backend type, or "any".
func PreferredType(input string) models.BackendType {
	lower := strings.ToLower(input)
	for _, ti := range typeIndicators {
		for _, w := range ti.words {
			if strings.Contains(lower, w) {
				return ti.backendType
			}
		}
	}
	return models.BackendTypeAny
}
