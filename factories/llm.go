package factories

import (
	"errors"
	"fmt"

	"voiceassist/core"
	llmhandler "voiceassist/handlers/llm"
	openaillm "voiceassist/services/openai/llm"
	yandexllm "voiceassist/services/yandex/llm"

	"github.com/bytedance/sonic"
)

// LLMFactoryConfig selects one chat provider. Only one field should be set.
// Every provider except Yandex is reached through the OpenAI client with the
// provider's base URL.
type LLMFactoryConfig struct {
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty"`
	MistralConfig    *openaillm.Config `json:"mistral,omitempty"`
	YandexConfig     *yandexllm.Config `json:"yandex,omitempty"`
}

// openAICompatible describes a provider served by the OpenAI client.
type openAICompatible struct {
	name    string
	baseURL string
	model   string
	config  func(LLMFactoryConfig) *openaillm.Config
}

var openAICompatibleProviders = []openAICompatible{
	{"openai", "", openaillm.DefaultConfig().Model,
		func(c LLMFactoryConfig) *openaillm.Config { return c.OpenAIConfig }},
	{"together", "https://api.together.xyz/v1", "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		func(c LLMFactoryConfig) *openaillm.Config { return c.TogetherConfig }},
	{"groq", "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile",
		func(c LLMFactoryConfig) *openaillm.Config { return c.GroqConfig }},
	{"deepseek", "https://api.deepseek.com/v1", "deepseek-chat",
		func(c LLMFactoryConfig) *openaillm.Config { return c.DeepSeekConfig }},
	{"openrouter", "https://openrouter.ai/api/v1", "openai/gpt-4o",
		func(c LLMFactoryConfig) *openaillm.Config { return c.OpenRouterConfig }},
	{"mistral", "https://api.mistral.ai/v1", "mistral-large-latest",
		func(c LLMFactoryConfig) *openaillm.Config { return c.MistralConfig }},
}

// BuildLLMService returns the service for the first provider set in config.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (llmhandler.LLMService, error) {
	for _, p := range openAICompatibleProviders {
		if cfg := p.config(config); cfg != nil {
			return p.build(*cfg, logger)
		}
	}
	if config.YandexConfig != nil {
		svc, err := yandexllm.NewYandexLLMService(*config.YandexConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return nil, errors.New("llm: no provider configured")
}

// build fills in the provider's base URL and model where cfg leaves them empty.
func (p openAICompatible) build(cfg openaillm.Config, logger *core.Logger) (llmhandler.LLMService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = openaillm.DefaultConfig().MaxTokens
	}
	svc, err := openaillm.NewOpenAILLMService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", p.name, err)
	}
	return svc, nil
}

// UnmarshalJSON replaces the whole provider selection, so a settings file
// naming a provider does not inherit the default one.
func (c *LLMFactoryConfig) UnmarshalJSON(data []byte) error {
	type plain LLMFactoryConfig
	var p plain
	if err := sonic.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = LLMFactoryConfig(p)
	return nil
}
