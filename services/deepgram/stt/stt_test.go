package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *DeepgramSTTService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "dg-key"
	cfg.BaseURL = srv.URL
	svc, err := NewDeepgramSTTService(cfg, core.NewNopLogger())
	require.NoError(t, err)
	return svc
}

func TestTranscribe(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "nova-2", r.URL.Query().Get("model"))
		assert.Equal(t, "true", r.URL.Query().Get("smart_format"))
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "RIFFdata", string(body))

		w.Write([]byte(`{"metadata":{"duration":1.5,"request_id":"r1"},
			"results":{"channels":[{"alternatives":[{"transcript":"I forgot my password","confidence":0.98}]}]}}`))
	})

	text, err := svc.Transcribe(context.Background(), []byte("RIFFdata"))
	require.NoError(t, err)
	assert.Equal(t, "I forgot my password", text)
}

func TestTranscribeEmptyResult(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":""}]}]}}`))
	})

	text, err := svc.Transcribe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx", http.StatusUnauthorized, `{"err_msg":"bad key"}`},
		{"malformed", http.StatusOK, `{"results":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := svc.Transcribe(context.Background(), []byte("x"))
			var te *core.TranscriptionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.status, te.Status)
		})
	}
}

func TestBuildListenURL(t *testing.T) {
	svc, err := NewDeepgramSTTService(&DeepgramConfig{APIKey: "k", Model: "nova-2", SmartFormat: true, Keyterms: []string{"reset", "billing"}}, nil)
	require.NoError(t, err)
	u, err := svc.buildListenURL()
	require.NoError(t, err)
	assert.Contains(t, u, "https://api.deepgram.com/v1/listen?")
	assert.Contains(t, u, "keyterm=reset&keyterm=billing")
	assert.Contains(t, u, "smart_format=true")
}
