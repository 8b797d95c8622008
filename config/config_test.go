package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	for _, key := range []string{"DATA_DIR", "AGENT_ID", "LOG_LEVEL", "SETTINGS_PATH"} {
		// Setenv restores the variable after the test; Unsetenv makes it absent.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "settings.json", cfg.SettingsPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.AgentID)
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("YANDEX_FOLDER_ID", "folder")
	t.Setenv("DATA_DIR", "/var/lib/voiceassist")
	t.Setenv("AGENT_ID", "agent-7")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/voiceassist", cfg.DataDir)
	assert.Equal(t, "agent-7", cfg.AgentID)

	keys := cfg.APIKeys()
	assert.Equal(t, "dg", keys.Deepgram)
	assert.Equal(t, "folder", keys.YandexFolder)
}
