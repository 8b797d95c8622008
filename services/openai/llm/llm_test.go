package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceassist/core"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *OpenAILLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL + "/v1"
	svc, err := NewOpenAILLMService(cfg, core.NewNopLogger())
	require.NoError(t, err)
	return svc
}

func TestGenerateReply(t *testing.T) {
	var got map[string]interface{}
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, sonic.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Happy to help."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`))
	})

	reply, err := svc.GenerateReply(context.Background(), []core.Message{
		{Role: core.MessageRoleSystem, Content: "be nice"},
		core.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Happy to help.", reply)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.EqualValues(t, 500, got["max_tokens"])
	msgs, ok := got["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
}

func TestGenerateReplyHTTPError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := svc.GenerateReply(context.Background(), []core.Message{core.NewUserMessage("hello")})
	var re *core.ReplyError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusTooManyRequests, re.Status)
	assert.Equal(t, "openai", re.Provider)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := NewOpenAILLMService(DefaultConfig(), nil)
	assert.Error(t, err)
}
