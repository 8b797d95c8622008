package factories

import (
	"fmt"

	"voiceassist/conversation"
	"voiceassist/core"
	llmhandler "voiceassist/handlers/llm"
	stthandler "voiceassist/handlers/stt"
	ttshandler "voiceassist/handlers/tts"
	"voiceassist/playback"
	deepgramstt "voiceassist/services/deepgram/stt"
	elevenlabs "voiceassist/services/elevenlabs/tts"
	openaillm "voiceassist/services/openai/llm"
	systemtts "voiceassist/services/system/tts"

	"github.com/bytedance/sonic"
)

// buildChain builds the primary service and then each fallback in order.
func buildChain[F, S any](kind string, primary F, fallbacks []F, build func(F, *core.Logger) (S, error), logger *core.Logger) (S, []S, error) {
	var zero S
	first, err := build(primary, logger)
	if err != nil {
		return zero, nil, fmt.Errorf("%s primary service: %w", kind, err)
	}
	backups := make([]S, 0, len(fallbacks))
	for i, cfg := range fallbacks {
		svc, err := build(cfg, logger)
		if err != nil {
			return zero, nil, fmt.Errorf("%s fallback[%d]: %w", kind, i, err)
		}
		backups = append(backups, svc)
	}
	return first, backups, nil
}

// SessionTTSConfig is the speech gateway: handler settings plus a primary
// provider and fallbacks tried in order.
type SessionTTSConfig struct {
	HandlerConfig          ttshandler.TTSConfig `json:"handler"`
	ServiceConfig          TTSFactoryConfig     `json:"service"`
	FallbackServiceConfigs []TTSFactoryConfig   `json:"fallbacks,omitempty"`
}

// DefaultSessionTTSConfig speaks through ElevenLabs and falls back to the
// system synthesizer.
func DefaultSessionTTSConfig() SessionTTSConfig {
	primary := elevenlabs.DefaultConfig()
	fallback := systemtts.DefaultConfig()
	return SessionTTSConfig{
		HandlerConfig:          ttshandler.DefaultConfig(),
		ServiceConfig:          TTSFactoryConfig{ElevenLabsConfig: &primary},
		FallbackServiceConfigs: []TTSFactoryConfig{{SystemConfig: &fallback}},
	}
}

func (c SessionTTSConfig) BuildHandler(logger *core.Logger) (*ttshandler.TTSHandler, error) {
	primary, backups, err := buildChain("tts", c.ServiceConfig, c.FallbackServiceConfigs, BuildTTSService, logger)
	if err != nil {
		return nil, err
	}
	handler := ttshandler.NewTTSHandler(primary, c.HandlerConfig, logger)
	for _, svc := range backups {
		handler.WithBackupService(svc)
	}
	return handler, nil
}

// SessionSTTConfig is the transcription gateway.
type SessionSTTConfig struct {
	HandlerConfig          stthandler.STTConfig `json:"handler"`
	ServiceConfig          STTFactoryConfig     `json:"service"`
	FallbackServiceConfigs []STTFactoryConfig   `json:"fallbacks,omitempty"`
}

// DefaultSessionSTTConfig transcribes with Deepgram nova-2.
func DefaultSessionSTTConfig() SessionSTTConfig {
	return SessionSTTConfig{
		HandlerConfig: stthandler.DefaultConfig(),
		ServiceConfig: STTFactoryConfig{DeepgramConfig: deepgramstt.DefaultConfig()},
	}
}

func (c SessionSTTConfig) BuildHandler(logger *core.Logger) (*stthandler.STTHandler, error) {
	primary, backups, err := buildChain("stt", c.ServiceConfig, c.FallbackServiceConfigs, BuildSTTService, logger)
	if err != nil {
		return nil, err
	}
	handler := stthandler.NewSTTHandler(primary, c.HandlerConfig, logger)
	for _, svc := range backups {
		handler.WithBackupService(svc)
	}
	return handler, nil
}

// SessionLLMConfig is the reply gateway.
type SessionLLMConfig struct {
	HandlerConfig          llmhandler.LLMHandlerConfig `json:"handler"`
	ServiceConfig          LLMFactoryConfig            `json:"service"`
	FallbackServiceConfigs []LLMFactoryConfig          `json:"fallbacks,omitempty"`
}

// DefaultSessionLLMConfig replies with OpenAI gpt-4o.
func DefaultSessionLLMConfig() SessionLLMConfig {
	primary := openaillm.DefaultConfig()
	return SessionLLMConfig{
		HandlerConfig: llmhandler.DefaultConfig(),
		ServiceConfig: LLMFactoryConfig{OpenAIConfig: &primary},
	}
}

func (c SessionLLMConfig) BuildHandler(logger *core.Logger) (*llmhandler.LLMHandler, error) {
	primary, backups, err := buildChain("llm", c.ServiceConfig, c.FallbackServiceConfigs, BuildLLMService, logger)
	if err != nil {
		return nil, err
	}
	handler := llmhandler.NewLLMHandler(primary, c.HandlerConfig, logger)
	for _, svc := range backups {
		handler.WithBackupService(svc)
	}
	return handler, nil
}

// SessionConfig configures one conversation session: its three gateways,
// the playback queue and the session itself.
type SessionConfig struct {
	TTS          SessionTTSConfig    `json:"tts"`
	STT          SessionSTTConfig    `json:"stt"`
	LLM          SessionLLMConfig    `json:"llm"`
	Playback     playback.Config     `json:"playback"`
	Conversation conversation.Config `json:"conversation"`
}

// DefaultSessionConfig is usable as is once API keys are injected.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTS:          DefaultSessionTTSConfig(),
		STT:          DefaultSessionSTTConfig(),
		LLM:          DefaultSessionLLMConfig(),
		Playback:     playback.DefaultConfig(),
		Conversation: conversation.DefaultConfig(),
	}
}

// SessionConfigFromJSON decodes data over DefaultSessionConfig.
func SessionConfigFromJSON(data []byte) (SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SessionConfig{}, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

// APIKeys are provider credentials read from the environment. They are
// never part of settings files.
type APIKeys struct {
	Deepgram     string
	OpenAI       string
	Together     string
	Groq         string
	DeepSeek     string
	OpenRouter   string
	Mistral      string
	YandexOAuth  string
	YandexFolder string // applied when settings leave the folder empty
	ElevenLabs   string
	Cartesia     string
}

// InjectAPIKeys fills empty credentials in every provider config, primary
// and fallback. Configs are copied before they change, so a SessionConfig
// shared between sessions is left as it was.
func (c *SessionConfig) InjectAPIKeys(keys APIKeys) {
	injectChain(&c.STT.ServiceConfig, &c.STT.FallbackServiceConfigs, func(f *STTFactoryConfig) { injectSTTKeys(f, keys) })
	injectChain(&c.LLM.ServiceConfig, &c.LLM.FallbackServiceConfigs, func(f *LLMFactoryConfig) { injectLLMKeys(f, keys) })
	injectChain(&c.TTS.ServiceConfig, &c.TTS.FallbackServiceConfigs, func(f *TTSFactoryConfig) { injectTTSKeys(f, keys) })
}

func injectChain[F any](primary *F, fallbacks *[]F, inject func(*F)) {
	inject(primary)
	*fallbacks = append([]F(nil), (*fallbacks)...)
	for i := range *fallbacks {
		inject(&(*fallbacks)[i])
	}
}

func injectSTTKeys(cfg *STTFactoryConfig, keys APIKeys) {
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		dg := *cfg.DeepgramConfig
		dg.APIKey = keys.Deepgram
		cfg.DeepgramConfig = &dg
	}
}

func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	cfg.OpenAIConfig = withOpenAIKey(cfg.OpenAIConfig, keys.OpenAI)
	cfg.TogetherConfig = withOpenAIKey(cfg.TogetherConfig, keys.Together)
	cfg.GroqConfig = withOpenAIKey(cfg.GroqConfig, keys.Groq)
	cfg.DeepSeekConfig = withOpenAIKey(cfg.DeepSeekConfig, keys.DeepSeek)
	cfg.OpenRouterConfig = withOpenAIKey(cfg.OpenRouterConfig, keys.OpenRouter)
	cfg.MistralConfig = withOpenAIKey(cfg.MistralConfig, keys.Mistral)
	if cfg.YandexConfig != nil {
		ya := *cfg.YandexConfig
		if ya.OAuthToken == "" {
			ya.OAuthToken = keys.YandexOAuth
		}
		if ya.FolderID == "" {
			ya.FolderID = keys.YandexFolder
		}
		cfg.YandexConfig = &ya
	}
}

func withOpenAIKey(cfg *openaillm.Config, key string) *openaillm.Config {
	if cfg == nil || cfg.APIKey != "" {
		return cfg
	}
	c := *cfg
	c.APIKey = key
	return &c
}

func injectTTSKeys(cfg *TTSFactoryConfig, keys APIKeys) {
	if cfg.ElevenLabsConfig != nil && cfg.ElevenLabsConfig.APIKey == "" {
		el := *cfg.ElevenLabsConfig
		el.APIKey = keys.ElevenLabs
		cfg.ElevenLabsConfig = &el
	}
	if cfg.DeepgramConfig != nil && cfg.DeepgramConfig.APIKey == "" {
		dg := *cfg.DeepgramConfig
		dg.APIKey = keys.Deepgram
		cfg.DeepgramConfig = &dg
	}
	if cfg.CartesiaConfig != nil && cfg.CartesiaConfig.APIKey == "" {
		ct := *cfg.CartesiaConfig
		ct.APIKey = keys.Cartesia
		cfg.CartesiaConfig = &ct
	}
}

// SessionHandlers holds the gateway handlers of one session.
//
//	audio -> STT -> conversation.Session -> LLM -> playback.Queue -> TTS -> output
type SessionHandlers struct {
	TTS *ttshandler.TTSHandler
	STT *stthandler.STTHandler
	LLM *llmhandler.LLMHandler
}

// BuildHandlers builds the three gateways. User-facing notices go to
// notifier when it is non-nil.
func (c SessionConfig) BuildHandlers(logger *core.Logger, notifier core.Notifier) (*SessionHandlers, error) {
	var (
		h   SessionHandlers
		err error
	)
	if h.TTS, err = c.TTS.BuildHandler(logger); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if h.STT, err = c.STT.BuildHandler(logger); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if h.LLM, err = c.LLM.BuildHandler(logger); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if notifier != nil {
		h.TTS.WithNotifier(notifier)
		h.STT.WithNotifier(notifier)
		h.LLM.WithNotifier(notifier)
	}
	return &h, nil
}
