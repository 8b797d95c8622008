package conversation

import (
	"time"

	ctxhandler "voiceassist/handlers/context"
)

type Config struct {
	GreetingDelay         time.Duration             `json:"greeting_delay"`          // Lets the audio output come up before the greeting is spoken.
	EmptyTranscriptNotice string                    `json:"empty_transcript_notice"` // Shown when nothing intelligible was said.
	NotReadyNotice        string                    `json:"not_ready_notice"`        // Shown when a session is started without an email.
	TurnFailedNotice      string                    `json:"turn_failed_notice"`      // Shown for turn failures no provider reported itself.
	Greeting              ctxhandler.GreetingConfig `json:"greeting"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GreetingDelay:         300 * time.Millisecond,
		EmptyTranscriptNotice: "I couldn't hear anything. Please try again.",
		NotReadyNotice:        "Please provide your email to start a conversation.",
		TurnFailedNotice:      "Error processing your request. Please try again.",
		Greeting:              ctxhandler.DefaultGreetingConfig(),
	}
}
