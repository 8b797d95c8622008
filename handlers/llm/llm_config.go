package llm

type LLMHandlerConfig struct {
	SystemPrompt string `json:"system_prompt"` // Prepended to every request as a system message.
	Apology      string `json:"apology"`       // Substituted for the reply when every service fails.
	MaxHistory   int    `json:"max_history"`   // Most recent transcript messages sent along, 0 sends all.
}

// DefaultConfig returns an LLMHandlerConfig with sensible defaults.
func DefaultConfig() LLMHandlerConfig {
	return LLMHandlerConfig{
		SystemPrompt: SYSTEM_PROMPT,
		Apology:      APOLOGY_REPLY,
	}
}
