package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voiceassist/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const providerName = "deepgram"

// maxCharsBeforeFlush is the character limit before a flush is forced.
// Deepgram returns DATA-0001 (1008) if too many characters are buffered between flushes.
const maxCharsBeforeFlush = 2000

// DeepgramTTSConfig holds configuration for the Deepgram TTS service
type DeepgramTTSConfig struct {
	APIKey     string `json:"-"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	Encoding   string `json:"encoding"` // linear16, mulaw or alaw.
	SampleRate int    `json:"sample_rate"`

	DialAttempts int           `json:"dial_attempts"`
	ReadTimeout  time.Duration `json:"read_timeout"`
}

// DefaultConfig returns a DeepgramTTSConfig with sensible defaults
func DefaultConfig() DeepgramTTSConfig {
	return DeepgramTTSConfig{
		BaseURL:      "wss://api.deepgram.com/v1/speak",
		Model:        "aura-2-arcas-en",
		Encoding:     "linear16",
		SampleRate:   24000,
		DialAttempts: 3,
		ReadTimeout:  30 * time.Second,
	}
}

// DeepgramTTS synthesizes each utterance on its own speak WebSocket.
type DeepgramTTS struct {
	config DeepgramTTSConfig
	dialer *websocket.Dialer
	logger *core.Logger
}

// Message types for Deepgram TTS WebSocket protocol
type (
	// Client messages
	speakV1Text struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	speakV1Control struct {
		Type string `json:"type"` // Flush or Close
	}

	// Server messages; Type selects which fields are set.
	speakV1Message struct {
		Type        string  `json:"type"`
		ModelName   string  `json:"model_name"`
		SequenceID  float64 `json:"sequence_id"`
		Description string  `json:"description"`
		Code        string  `json:"code"`
	}
)

// NewDeepgramTTS creates a new Deepgram TTS service. Zero fields take the
// DefaultConfig values.
func NewDeepgramTTS(config DeepgramTTSConfig, logger *core.Logger) (*DeepgramTTS, error) {
	if config.APIKey == "" {
		return nil, errors.New("Deepgram API key is required")
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if _, err := encodingFormat(config.Encoding); err != nil {
		return nil, err
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.DialAttempts <= 0 {
		config.DialAttempts = defaults.DialAttempts
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramTTS{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger: logger,
	}, nil
}

func (d *DeepgramTTS) Name() string { return providerName }

// encodingFormat converts a Deepgram encoding name to core.AudioEncodingFormat
func encodingFormat(encoding string) (core.AudioEncodingFormat, error) {
	switch encoding {
	case "linear16":
		return core.PCM, nil
	case "mulaw":
		return core.ULAW, nil
	case "alaw":
		return core.ALAW, nil
	default:
		return core.PCM, fmt.Errorf("unsupported Deepgram encoding %q", encoding)
	}
}

func (d *DeepgramTTS) speakURL() (string, error) {
	u, err := url.Parse(d.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram speak url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.config.Model)
	q.Set("encoding", d.config.Encoding)
	q.Set("sample_rate", fmt.Sprint(d.config.SampleRate))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// establishConnection dials with linear backoff. A handshake answered with
// an HTTP error status is final.
func (d *DeepgramTTS) establishConnection(ctx context.Context) (*websocket.Conn, int, error) {
	const baseDelay = 500 * time.Millisecond

	speakURL, err := d.speakURL()
	if err != nil {
		return nil, 0, err
	}
	// Deepgram requires the "Token " prefix for API keys.
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.config.APIKey)

	var lastErr error
	for attempt := 0; attempt < d.config.DialAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			d.logger.Infof("Deepgram TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, d.config.DialAttempts, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, resp, err := d.dialer.DialContext(ctx, speakURL, headers)
		if err == nil {
			return conn, 0, nil
		}
		if resp != nil && resp.StatusCode >= 400 {
			return nil, resp.StatusCode, fmt.Errorf("handshake rejected: %s", resp.Status)
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("failed to connect after %d attempts: %w", d.config.DialAttempts, lastErr)
}

// Synthesize speaks text and returns the whole utterance as one clip.
func (d *DeepgramTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	format, err := encodingFormat(d.config.Encoding)
	if err != nil {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, err)
	}

	conn, status, err := d.establishConnection(ctx)
	if err != nil {
		return core.AudioClip{}, core.NewSynthesisError(providerName, status, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	flushes, err := d.sendText(conn, text)
	if err != nil {
		return core.AudioClip{}, d.failure(ctx, err)
	}

	audio, err := d.readAudio(conn, flushes)
	if err != nil {
		return core.AudioClip{}, d.failure(ctx, err)
	}
	// The socket is done with; a failed Close message changes nothing.
	d.sendJSON(conn, speakV1Control{Type: "Close"})

	if len(audio) == 0 {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, errors.New("no audio received"))
	}
	return core.AudioClip{Data: audio, SampleRate: d.config.SampleRate, Channels: 1, Format: format}, nil
}

func (d *DeepgramTTS) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return core.NewSynthesisError(providerName, 0, err)
}

// sendText sends text as Speak messages, each followed by a Flush, in
// pieces small enough to stay under maxCharsBeforeFlush. It returns the
// number of flushes sent.
func (d *DeepgramTTS) sendText(conn *websocket.Conn, text string) (int, error) {
	const chunkSize = maxCharsBeforeFlush - 100 // leave headroom

	flushes := 0
	for _, chunk := range splitText(text, chunkSize) {
		if err := d.sendJSON(conn, speakV1Text{Type: "Speak", Text: chunk}); err != nil {
			return flushes, err
		}
		if err := d.sendJSON(conn, speakV1Control{Type: "Flush"}); err != nil {
			return flushes, err
		}
		flushes++
	}
	return flushes, nil
}

// splitText cuts text into pieces of at most size bytes without splitting
// a UTF-8 sequence.
func splitText(text string, size int) []string {
	var chunks []string
	for len(text) > size {
		cut := size
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func (d *DeepgramTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readAudio collects binary audio frames until every flush has been
// acknowledged with Flushed.
func (d *DeepgramTTS) readAudio(conn *websocket.Conn, flushes int) ([]byte, error) {
	var audio []byte
	for flushed := 0; flushed < flushes; {
		conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if messageType == websocket.BinaryMessage {
			audio = append(audio, message...)
			continue
		}

		var msg speakV1Message
		if err := sonic.Unmarshal(message, &msg); err != nil {
			d.logger.Warn("Deepgram TTS: failed to parse message", "error", err)
			continue
		}
		switch msg.Type {
		case "Metadata":
			d.logger.Debug("Deepgram TTS metadata", "model", msg.ModelName)
		case "Flushed":
			flushed++
		case "Warning":
			d.logger.Warn("Deepgram TTS warning", "description", msg.Description, "code", msg.Code)
		case "Error":
			return nil, fmt.Errorf("Deepgram error: %s (code: %s)", msg.Description, msg.Code)
		}
	}
	return audio, nil
}
