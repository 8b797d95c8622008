package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voiceassist/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const providerName = "elevenlabs"

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey       string `json:"-"`
	BaseURL      string `json:"base_url"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id"`
	OutputFormat string `json:"output_format"` // pcm_16000, pcm_22050, pcm_24000, pcm_44100 or ulaw_8000.

	// Voice settings
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`

	DialAttempts int           `json:"dial_attempts"`
	ReadTimeout  time.Duration `json:"read_timeout"`
}

// DefaultConfig returns the voice used for the assistant.
func DefaultConfig() ElevenLabsTTSConfig {
	return ElevenLabsTTSConfig{
		BaseURL:         "wss://api.elevenlabs.io/v1/text-to-speech",
		VoiceID:         "EXAVITQu4vr4xnSDxMaL",
		ModelID:         "eleven_turbo_v2",
		OutputFormat:    "pcm_22050",
		Stability:       0.5,
		SimilarityBoost: 0.75,
		DialAttempts:    3,
		ReadTimeout:     30 * time.Second,
	}
}

// ElevenLabsTTS synthesizes one utterance per WebSocket stream-input session.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	dialer *websocket.Dialer
	logger *core.Logger
}

// Client messages
type (
	// BOS (Beginning of Stream) - sent once on connect
	elBOSMessage struct {
		Text             string          `json:"text"`
		VoiceSettings    elVoiceSettings `json:"voice_settings"`
		GenerationConfig elGenConfig     `json:"generation_config"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elGenConfig struct {
		ChunkLengthSchedule []int `json:"chunk_length_schedule"`
	}

	// Text chunk message; an empty text closes the input stream.
	elTextMessage struct {
		Text  string `json:"text"`
		Flush bool   `json:"flush,omitempty"`
	}
)

// Server messages
type (
	// Audio response from ElevenLabs (base64-encoded audio)
	elAudioMessage struct {
		Audio   string `json:"audio"`
		IsFinal bool   `json:"isFinal"`

		Error   string `json:"error"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) (*ElevenLabsTTS, error) {
	if config.APIKey == "" {
		return nil, errors.New("ElevenLabs API key is required")
	}
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = def.VoiceID
	}
	if config.ModelID == "" {
		config.ModelID = def.ModelID
	}
	if config.OutputFormat == "" {
		config.OutputFormat = def.OutputFormat
	}
	if _, _, err := parseOutputFormat(config.OutputFormat); err != nil {
		return nil, err
	}
	if config.Stability == 0 {
		config.Stability = def.Stability
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = def.SimilarityBoost
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
	return &ElevenLabsTTS{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger: logger,
	}, nil
}

func (e *ElevenLabsTTS) Name() string { return providerName }

// parseOutputFormat converts an ElevenLabs output_format to encoding and sample rate.
func parseOutputFormat(format string) (core.AudioEncodingFormat, int, error) {
	switch format {
	case "ulaw_8000":
		return core.ULAW, 8000, nil
	case "pcm_16000":
		return core.PCM, 16000, nil
	case "pcm_22050":
		return core.PCM, 22050, nil
	case "pcm_24000":
		return core.PCM, 24000, nil
	case "pcm_44100":
		return core.PCM, 44100, nil
	default:
		return core.PCM, 0, fmt.Errorf("unsupported ElevenLabs output format %q", format)
	}
}

func (e *ElevenLabsTTS) streamURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(e.config.BaseURL, "/") + "/" + url.PathEscape(e.config.VoiceID) + "/stream-input")
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	q := u.Query()
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", e.config.OutputFormat)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// establishConnection dials with linear backoff. Rejections carrying an
// HTTP status (bad key, quota) are not retried.
func (e *ElevenLabsTTS) establishConnection(ctx context.Context) (*websocket.Conn, int, error) {
	const baseDelay = 500 * time.Millisecond

	wsURL, err := e.streamURL()
	if err != nil {
		return nil, 0, err
	}
	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	var lastErr error
	for attempt := 0; attempt < e.config.DialAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			e.logger.Infof("ElevenLabs TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, e.config.DialAttempts, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, resp, err := e.dialer.DialContext(ctx, wsURL, headers)
		if err == nil {
			return conn, 0, nil
		}
		if resp != nil && resp.StatusCode >= 400 {
			return nil, resp.StatusCode, fmt.Errorf("handshake rejected: %s", resp.Status)
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("failed to connect after %d attempts: %w", e.config.DialAttempts, lastErr)
}

// Synthesize speaks text and returns the whole utterance as one clip.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	format, sampleRate, err := parseOutputFormat(e.config.OutputFormat)
	if err != nil {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, err)
	}

	conn, status, err := e.establishConnection(ctx)
	if err != nil {
		return core.AudioClip{}, core.NewSynthesisError(providerName, status, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := e.sendText(conn, text); err != nil {
		return core.AudioClip{}, e.failure(ctx, err)
	}

	audio, err := e.readAudio(conn)
	if err != nil {
		return core.AudioClip{}, e.failure(ctx, err)
	}
	if len(audio) == 0 {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, errors.New("no audio received"))
	}
	return core.AudioClip{Data: audio, SampleRate: sampleRate, Channels: 1, Format: format}, nil
}

func (e *ElevenLabsTTS) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return core.NewSynthesisError(providerName, 0, err)
}

// sendText sends BOS, the text with a flush, and the closing empty message.
func (e *ElevenLabsTTS) sendText(conn *websocket.Conn, text string) error {
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	messages := []interface{}{
		elBOSMessage{
			Text: " ",
			VoiceSettings: elVoiceSettings{
				Stability:       e.config.Stability,
				SimilarityBoost: e.config.SimilarityBoost,
			},
			GenerationConfig: elGenConfig{
				ChunkLengthSchedule: []int{120, 160, 250, 290},
			},
		},
		elTextMessage{Text: text, Flush: true},
		elTextMessage{Text: ""},
	}
	for _, msg := range messages {
		if err := e.sendJSON(conn, msg); err != nil {
			return err
		}
	}
	return nil
}

func (e *ElevenLabsTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readAudio collects base64 audio frames until isFinal or a normal close.
func (e *ElevenLabsTTS) readAudio(conn *websocket.Conn) ([]byte, error) {
	var audio []byte
	for {
		conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(audio) > 0 {
				return audio, nil
			}
			return nil, fmt.Errorf("read: %w", err)
		}
		if messageType == websocket.BinaryMessage {
			audio = append(audio, message...)
			continue
		}

		var msg elAudioMessage
		if err := sonic.Unmarshal(message, &msg); err != nil {
			e.logger.Warn("ElevenLabs TTS: failed to parse message", "error", err)
			continue
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("ElevenLabs error: %s %s (code: %d)", msg.Error, msg.Message, msg.Code)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("failed to decode audio: %w", err)
			}
			audio = append(audio, chunk...)
		}
		if msg.IsFinal {
			return audio, nil
		}
	}
}
