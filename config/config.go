package config

import (
	"fmt"
	"os"

	"voiceassist/factories"

	"github.com/caarlos0/env/v6"
)

// Config is the process environment. Provider settings live in the
// settings file; this only carries secrets, paths and the UI link.
type Config struct {
	// Provider credentials
	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	TogetherAPIKey   string `env:"TOGETHER_API_KEY"`
	GroqAPIKey       string `env:"GROQ_API_KEY"`
	DeepSeekAPIKey   string `env:"DEEPSEEK_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	MistralAPIKey    string `env:"MISTRAL_API_KEY"`
	YandexOAuthToken string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string `env:"YANDEX_FOLDER_ID"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	CartesiaAPIKey   string `env:"CARTESIA_API_KEY"`

	// Storage
	DataDir string `env:"DATA_DIR" envDefault:"data"`
	LogDir  string `env:"CONVERSATION_LOG_DIR"`

	// Settings
	SettingsPath string `env:"SETTINGS_PATH" envDefault:"settings.json"`
	AudioPlayer  string `env:"AUDIO_PLAYER"`

	// UI link
	ConnectURL string `env:"CONNECT_URL"`
	AgentID    string `env:"AGENT_ID"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// New parses the environment. AgentID falls back to the host name.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.AgentID == "" {
		cfg.AgentID, _ = os.Hostname()
	}
	return cfg, nil
}

// APIKeys returns the credentials in the shape the session factories inject.
func (c *Config) APIKeys() factories.APIKeys {
	return factories.APIKeys{
		Deepgram:     c.DeepgramAPIKey,
		OpenAI:       c.OpenAIAPIKey,
		Together:     c.TogetherAPIKey,
		Groq:         c.GroqAPIKey,
		DeepSeek:     c.DeepSeekAPIKey,
		OpenRouter:   c.OpenRouterAPIKey,
		Mistral:      c.MistralAPIKey,
		YandexOAuth:  c.YandexOAuthToken,
		YandexFolder: c.YandexFolderID,
		ElevenLabs:   c.ElevenLabsAPIKey,
		Cartesia:     c.CartesiaAPIKey,
	}
}
