package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"voiceassist/core"

	"github.com/tidwall/gjson"
)

const providerName = "deepgram"

// transcriptPath locates the best transcript in a prerecorded /v1/listen response.
const transcriptPath = "results.channels.0.alternatives.0.transcript"

// DeepgramSTTService transcribes complete recordings with Deepgram's
// prerecorded API.
type DeepgramSTTService struct {
	config *DeepgramConfig
	client *http.Client
	logger *core.Logger
}

// DeepgramConfig holds configuration options for Deepgram STT
type DeepgramConfig struct {
	APIKey          string            `json:"-"`
	BaseURL         string            `json:"base_url"`
	Model           string            `json:"model"`
	Language        string            `json:"language"`
	Punctuate       bool              `json:"punctuate"`
	SmartFormat     bool              `json:"smart_format"`
	ProfanityFilter bool              `json:"profanity_filter"`
	Numerals        bool              `json:"numerals"`
	Keyterms        []string          `json:"keyterms"`
	Extra           map[string]string `json:"extra"`
	Timeout         time.Duration     `json:"timeout"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:     "https://api.deepgram.com",
		Model:       "nova-2",
		SmartFormat: true,
		Timeout:     30 * time.Second,
	}
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) (*DeepgramSTTService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("Deepgram API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.deepgram.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	return &DeepgramSTTService{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

func (d *DeepgramSTTService) Name() string { return providerName }

// Transcribe uploads the recording and returns the transcript. An empty
// transcript is a valid result.
func (d *DeepgramSTTService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	endpoint, err := d.buildListenURL()
	if err != nil {
		return "", core.NewTranscriptionError(providerName, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", core.NewTranscriptionError(providerName, 0, err)
	}
	req.Header.Set("Authorization", "Token "+d.config.APIKey)
	req.Header.Set("Content-Type", http.DetectContentType(audio))

	resp, err := d.client.Do(req)
	if err != nil {
		return "", core.NewTranscriptionError(providerName, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.NewTranscriptionError(providerName, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", core.NewTranscriptionError(providerName, resp.StatusCode, fmt.Errorf("failed to transcribe audio: %s", snippet(body)))
	}
	if !gjson.ValidBytes(body) {
		return "", core.NewTranscriptionError(providerName, resp.StatusCode, errors.New("malformed response body"))
	}

	transcript := gjson.GetBytes(body, transcriptPath).String()
	d.logger.Debug("transcription finished",
		"chars", len(transcript),
		"duration", gjson.GetBytes(body, "metadata.duration").Float(),
		"request_id", gjson.GetBytes(body, "metadata.request_id").String())
	return transcript, nil
}

// buildListenURL constructs the /v1/listen URL with query parameters
func (d *DeepgramSTTService) buildListenURL() (string, error) {
	base, err := url.Parse(d.config.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := base.Query()
	if d.config.Model != "" {
		q.Set("model", d.config.Model)
	}
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	q.Set("smart_format", strconv.FormatBool(d.config.SmartFormat))
	if d.config.Punctuate {
		q.Set("punctuate", "true")
	}
	if d.config.ProfanityFilter {
		q.Set("profanity_filter", "true")
	}
	if d.config.Numerals {
		q.Set("numerals", "true")
	}
	for _, keyterm := range d.config.Keyterms {
		q.Add("keyterm", keyterm)
	}
	for key, value := range d.config.Extra {
		q.Set(key, value)
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
