// Package output normalizes raw backend results into response envelopes.
package output

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	apperrors "ai-junction/internal/common/errors"
	httpclient "ai-junction/internal/common/http"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"
)

type Config struct {
	// TTSURL is the speech synthesis endpoint. Voice output is unavailable without it.
	TTSURL      string
	TTSLanguage string
	Timeout     time.Duration
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type Processor struct {
	config Config
	client *httpclient.Client
	logger logger.Logger
}

func New(cfg Config, client *httpclient.Client, log logger.Logger) *Processor {
	if cfg.TTSLanguage == "" {
		cfg.TTSLanguage = "en"
	}
	if client == nil {
		client = httpclient.NewClient(0)
	}
	return &Processor{
		config: cfg,
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "output"}),
	}
}

// Process builds the envelope for raw. kind "voice" adds base64 audio; any
// other kind yields text.
func (p *Processor) Process(ctx context.Context, raw any, kind string) (models.Envelope, error) {
	envelope := models.Envelope{
		Text: ExtractText(raw),
		Type: models.OutputText,
	}

	if kind == models.OutputVoice {
		audio, err := p.synthesize(ctx, envelope.Text)
		if err != nil {
			p.logger.WithError(err).Error("Text to speech failed", nil)
			return models.Envelope{}, apperrors.NewOutputUnavailableError(err)
		}
		envelope.Audio = audio
		envelope.Type = models.OutputVoice
	}

	p.logger.Debug("Processed output", map[string]interface{}{"type": envelope.Type})
	return envelope, nil
}

func (p *Processor) synthesize(ctx context.Context, text string) (string, error) {
	if p.config.TTSURL == "" {
		return "", fmt.Errorf("text to speech is not configured")
	}
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	audio, err := p.client.PostJSONForBytes(ctx, p.config.TTSURL, nil, ttsRequest{
		Text:     text,
		Language: p.config.TTSLanguage,
	})
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("text to speech returned no audio")
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

// ExtractText prefers a "text" field, then "message", then the value's own
// string form.
func ExtractText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case map[string]any:
		if text, ok := v["text"]; ok {
			return stringify(text)
		}
		if msg, ok := v["message"]; ok {
			return stringify(msg)
		}
		return stringify(v)
	case fmt.Stringer:
		return v.String()
	default:
		return stringify(v)
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
