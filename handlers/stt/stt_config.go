package stt

type STTConfig struct {
	MinAudioBytes int    `json:"min_audio_bytes"` // Recordings shorter than this are treated as silence and never uploaded.
	FailedNotice  string `json:"failed_notice"`   // Shown when every transcription service failed.
}

// DefaultConfig returns an STTConfig with sensible defaults.
func DefaultConfig() STTConfig {
	return STTConfig{
		MinAudioBytes: 1,
		FailedNotice:  "Failed to transcribe audio. Please try again.",
	}
}
