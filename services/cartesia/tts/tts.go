package cartesia

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voiceassist/core"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const providerName = "cartesia"

const (
	defaultCartesiaURL        = "wss://api.cartesia.ai/tts/websocket"
	defaultCartesiaModelID    = "sonic-2"
	defaultCartesiaVoiceID    = "a0e99841-438c-4a64-b679-ae501e7d6091" // Helpful Woman
	defaultCartesiaAPIVersion = "2024-11-13"
	defaultCartesiaLanguage   = "en"
)

// CartesiaTTSConfig holds configuration for the Cartesia TTS service.
type CartesiaTTSConfig struct {
	APIKey     string `json:"-"`
	BaseURL    string `json:"base_url"`
	ModelID    string `json:"model_id"`
	VoiceID    string `json:"voice_id"`
	Language   string `json:"language"`
	APIVersion string `json:"api_version"`
	Encoding   string `json:"encoding"` // pcm_s16le or pcm_mulaw.
	SampleRate int    `json:"sample_rate"`

	DialAttempts int           `json:"dial_attempts"`
	ReadTimeout  time.Duration `json:"read_timeout"`
}

func DefaultConfig() CartesiaTTSConfig {
	return CartesiaTTSConfig{
		BaseURL:      defaultCartesiaURL,
		ModelID:      defaultCartesiaModelID,
		VoiceID:      defaultCartesiaVoiceID,
		Language:     defaultCartesiaLanguage,
		APIVersion:   defaultCartesiaAPIVersion,
		Encoding:     "pcm_s16le",
		SampleRate:   24000,
		DialAttempts: 3,
		ReadTimeout:  30 * time.Second,
	}
}

// CartesiaTTS synthesizes each utterance as one context on a fresh
// WebSocket connection.
type CartesiaTTS struct {
	config CartesiaTTSConfig
	dialer *websocket.Dialer
	logger *core.Logger
}

// cartesiaTTSRequest asks for one complete utterance.
type cartesiaTTSRequest struct {
	ModelID    string            `json:"model_id"`
	Transcript string            `json:"transcript"`
	Voice      cartesiaVoice     `json:"voice"`
	OutputFmt  cartesiaOutputFmt `json:"output_format"`
	ContextID  string            `json:"context_id"`
	Continue   bool              `json:"continue"`
	Language   string            `json:"language,omitempty"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFmt struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// cartesiaResponse is a text (JSON) frame from Cartesia.
// Audio arrives either as binary frames or base64 in a "chunk" frame.
type cartesiaResponse struct {
	Type       string `json:"type"`
	ContextID  string `json:"context_id"`
	StatusCode int    `json:"status_code"`
	Done       bool   `json:"done"`
	Error      string `json:"error,omitempty"`
	Data       string `json:"data,omitempty"`
}

// NewCartesiaTTS creates a new Cartesia TTS service. Zero fields take the
// DefaultConfig values.
func NewCartesiaTTS(config CartesiaTTSConfig, logger *core.Logger) (*CartesiaTTS, error) {
	if config.APIKey == "" {
		return nil, errors.New("cartesia: API key is required")
	}
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.ModelID == "" {
		config.ModelID = def.ModelID
	}
	if config.VoiceID == "" {
		config.VoiceID = def.VoiceID
	}
	if config.APIVersion == "" {
		config.APIVersion = def.APIVersion
	}
	if config.Language == "" {
		config.Language = def.Language
	}
	if config.Encoding == "" {
		config.Encoding = def.Encoding
	}
	if _, err := encodingFormat(config.Encoding); err != nil {
		return nil, err
	}
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.DialAttempts <= 0 {
		config.DialAttempts = def.DialAttempts
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CartesiaTTS{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger: logger,
	}, nil
}

func (c *CartesiaTTS) Name() string { return providerName }

// encodingFormat maps Cartesia's encoding string to a core encoding.
func encodingFormat(enc string) (core.AudioEncodingFormat, error) {
	switch enc {
	case "pcm_s16le":
		return core.PCM, nil
	case "pcm_mulaw":
		return core.ULAW, nil
	case "pcm_alaw":
		return core.ALAW, nil
	default:
		return core.PCM, fmt.Errorf("cartesia: unsupported encoding %q", enc)
	}
}

// newContextID generates a random UUID to use as a Cartesia context_id.
func newContextID() string {
	return uuid.New().String()
}

func (c *CartesiaTTS) socketURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("cartesia: invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.config.APIKey)
	q.Set("cartesia_version", c.config.APIVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *CartesiaTTS) establishConnection(ctx context.Context) (*websocket.Conn, int, error) {
	const baseDelay = 500 * time.Millisecond

	socketURL, err := c.socketURL()
	if err != nil {
		return nil, 0, err
	}

	var lastErr error
	for attempt := 0; attempt < c.config.DialAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			c.logger.Infof("Cartesia TTS: retrying connection (attempt %d/%d) in %v after: %v",
				attempt+1, c.config.DialAttempts, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(delay):
			}
		}
		conn, resp, err := c.dialer.DialContext(ctx, socketURL, nil)
		if err == nil {
			return conn, 0, nil
		}
		if resp != nil && resp.StatusCode >= 400 {
			return nil, resp.StatusCode, fmt.Errorf("handshake rejected: %s", resp.Status)
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("failed to connect after %d attempts: %w", c.config.DialAttempts, lastErr)
}

// Synthesize speaks text and returns the whole utterance as one clip.
func (c *CartesiaTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	format, err := encodingFormat(c.config.Encoding)
	if err != nil {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, err)
	}

	conn, status, err := c.establishConnection(ctx)
	if err != nil {
		return core.AudioClip{}, core.NewSynthesisError(providerName, status, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	contextID := newContextID()
	if err := c.sendJSON(conn, c.buildRequest(text, contextID)); err != nil {
		return core.AudioClip{}, c.failure(ctx, err)
	}

	audio, err := c.readAudio(conn, contextID)
	if err != nil {
		return core.AudioClip{}, c.failure(ctx, err)
	}
	if len(audio) == 0 {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, errors.New("no audio received"))
	}
	return core.AudioClip{Data: audio, SampleRate: c.config.SampleRate, Channels: 1, Format: format}, nil
}

func (c *CartesiaTTS) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return core.NewSynthesisError(providerName, 0, err)
}

// buildRequest sends the whole transcript with continue=false, which
// closes the context once its audio is generated.
func (c *CartesiaTTS) buildRequest(transcript, contextID string) cartesiaTTSRequest {
	return cartesiaTTSRequest{
		ModelID:    c.config.ModelID,
		Transcript: transcript,
		Voice:      cartesiaVoice{Mode: "id", ID: c.config.VoiceID},
		OutputFmt:  cartesiaOutputFmt{Container: "raw", Encoding: c.config.Encoding, SampleRate: c.config.SampleRate},
		ContextID:  contextID,
		Continue:   false,
		Language:   c.config.Language,
	}
}

func (c *CartesiaTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cartesia: failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readAudio collects audio for contextID until Cartesia reports it done.
// Frames for other contexts are ignored, as are timestamp frames.
func (c *CartesiaTTS) readAudio(conn *websocket.Conn, contextID string) ([]byte, error) {
	var audio []byte
	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			audio = append(audio, msg...)
			continue
		}

		var resp cartesiaResponse
		if err := sonic.Unmarshal(msg, &resp); err != nil {
			c.logger.Warn("Cartesia TTS: failed to parse text message", "error", err)
			continue
		}
		if resp.ContextID != "" && resp.ContextID != contextID {
			continue
		}
		switch resp.Type {
		case "chunk":
			if resp.Data != "" {
				chunk, err := base64.StdEncoding.DecodeString(resp.Data)
				if err != nil {
					return nil, fmt.Errorf("cartesia: failed to decode audio chunk: %w", err)
				}
				audio = append(audio, chunk...)
			}
			if resp.Done {
				return audio, nil
			}
		case "error":
			return nil, fmt.Errorf("cartesia error (status %d): %s", resp.StatusCode, resp.Error)
		case "done":
			return audio, nil
		}
	}
}
