package llm

import (
	"errors"
	"testing"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMessages(t *testing.T) {
	out := convertMessages([]core.Message{
		{Role: core.MessageRoleSystem, Content: "s"},
		core.NewUserMessage("u"),
		core.NewAssistantMessage("a"),
	})
	require.Len(t, out, 3)
	assert.EqualValues(t, "system", out[0].Role)
	assert.EqualValues(t, "user", out[1].Role)
	assert.EqualValues(t, "assistant", out[2].Role)
	assert.Equal(t, "a", out[2].Content)
}

func TestTokenIsCached(t *testing.T) {
	calls := 0
	s := &YandexLLMService{
		refresh: func() (string, error) {
			calls++
			return "tok", nil
		},
		logger: core.NewNopLogger(),
	}
	for i := 0; i < 3; i++ {
		tok, err := s.token()
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	}
	assert.Equal(t, 1, calls)
}

func TestTokenRefreshFailure(t *testing.T) {
	s := &YandexLLMService{
		refresh: func() (string, error) { return "", errors.New("denied") },
		logger:  core.NewNopLogger(),
	}
	_, err := s.token()
	assert.ErrorContains(t, err, "denied")
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := NewYandexLLMService(Config{FolderID: "f"}, nil)
	assert.Error(t, err)
}
