package tts

type TTSConfig struct {
	FallbackNotice string `json:"fallback_notice"` // Shown when a backup synthesizer speaks instead of the primary.
	FailedNotice   string `json:"failed_notice"`   // Shown when no synthesizer could speak the text.
	MaxTextLength  int    `json:"max_text_length"` // Longer text is cut at the last sentence end before the limit. 0 disables.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		FallbackNotice: "Using system text-to-speech due to API limitations.",
		FailedNotice:   "Failed to play speech. Please try again.",
		MaxTextLength:  2500,
	}
}
