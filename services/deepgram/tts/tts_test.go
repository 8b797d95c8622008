package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"voiceassist/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTTS(t *testing.T, srv *httptest.Server) *DeepgramTTS {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIKey = "dg-key"
	cfg.BaseURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/speak"
	cfg.DialAttempts = 1
	tts, err := NewDeepgramTTS(cfg, core.NewNopLogger())
	require.NoError(t, err)
	return tts
}

func TestSynthesize(t *testing.T) {
	receivedCh := make(chan []map[string]interface{}, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speak", r.URL.Path)
		assert.Equal(t, "aura-2-arcas-en", r.URL.Query().Get("model"))
		assert.Equal(t, "linear16", r.URL.Query().Get("encoding"))
		assert.Equal(t, "24000", r.URL.Query().Get("sample_rate"))
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var received []map[string]interface{}
		defer func() { receivedCh <- received }()
		for i := 0; i < 2; i++ {
			_, data, err := conn.ReadMessage()
			if !assert.NoError(t, err) {
				return
			}
			var m map[string]interface{}
			assert.NoError(t, sonic.Unmarshal(data, &m))
			received = append(received, m)
		}
		conn.WriteJSON(map[string]interface{}{"type": "Metadata", "model_name": "aura-2-arcas-en"})
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 0, 2, 0})
		conn.WriteMessage(websocket.BinaryMessage, []byte{3, 0})
		conn.WriteJSON(map[string]interface{}{"type": "Flushed", "sequence_id": 0})

		_, data, err := conn.ReadMessage()
		if assert.NoError(t, err) {
			var m map[string]interface{}
			assert.NoError(t, sonic.Unmarshal(data, &m))
			received = append(received, m)
		}
	}))
	defer srv.Close()

	clip, err := newTestTTS(t, srv).Synthesize(context.Background(), "Hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0}, clip.Data)
	assert.Equal(t, core.PCM, clip.Format)
	assert.Equal(t, 24000, clip.SampleRate)
	assert.Equal(t, 1, clip.Channels)

	received := <-receivedCh
	require.Len(t, received, 3)
	assert.Equal(t, "Speak", received[0]["type"])
	assert.Equal(t, "Hello there", received[0]["text"])
	assert.Equal(t, "Flush", received[1]["type"])
	assert.Equal(t, "Close", received[2]["type"])
}

func TestSynthesizeHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestTTS(t, srv).Synthesize(context.Background(), "hi")
	var se *core.SynthesisError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestSynthesizeServerError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		conn.WriteJSON(map[string]interface{}{"type": "Error", "description": "too many characters", "code": "DATA-0001"})
	}))
	defer srv.Close()

	_, err := newTestTTS(t, srv).Synthesize(context.Background(), "hi")
	var se *core.SynthesisError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Error(), "DATA-0001")
}

func TestNewDeepgramTTSValidates(t *testing.T) {
	_, err := NewDeepgramTTS(DeepgramTTSConfig{}, core.NewNopLogger())
	assert.Error(t, err)

	_, err = NewDeepgramTTS(DeepgramTTSConfig{APIKey: "k", Encoding: "mp3"}, core.NewNopLogger())
	assert.Error(t, err)

	tts, err := NewDeepgramTTS(DeepgramTTSConfig{APIKey: "k", Encoding: "mulaw", SampleRate: 8000}, core.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "aura-2-arcas-en", tts.config.Model)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"abc"}, splitText("abc", 10))
	assert.Empty(t, splitText("", 10))

	long := strings.Repeat("é", 10) // 20 bytes
	chunks := splitText(long, 7)
	assert.Equal(t, long, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 7)
		assert.True(t, utf8.ValidString(c), c)
	}
}
