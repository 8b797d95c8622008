package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when a session is started without an email.
	ErrNotReady = errors.New("session not ready: email is required")
	// ErrTurnInProgress is returned when audio is submitted while a turn is running.
	ErrTurnInProgress = errors.New("a turn is already being processed")
	// ErrSessionClosed is returned for operations on a cleaned up session.
	ErrSessionClosed = errors.New("session closed")
)

// ProviderError is the common shape of failures reported by the provider
// gateway. Status is the HTTP status when one was received, 0 otherwise.
type ProviderError struct {
	Op       string // "transcribe", "reply", "synthesize", "decode"
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Op
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TranscriptionError reports an unavailable or failing transcription provider.
type TranscriptionError struct{ ProviderError }

// ReplyError reports an unavailable or failing reply generator.
type ReplyError struct{ ProviderError }

// SynthesisError reports an unavailable, failing or over-quota speech synthesizer.
type SynthesisError struct{ ProviderError }

// DecodeError reports a synthesized audio buffer that could not be decoded.
type DecodeError struct{ ProviderError }

func NewTranscriptionError(provider string, status int, err error) error {
	return &TranscriptionError{ProviderError{Op: "transcribe", Provider: provider, Status: status, Err: err}}
}

func NewReplyError(provider string, status int, err error) error {
	return &ReplyError{ProviderError{Op: "reply", Provider: provider, Status: status, Err: err}}
}

func NewSynthesisError(provider string, status int, err error) error {
	return &SynthesisError{ProviderError{Op: "synthesize", Provider: provider, Status: status, Err: err}}
}

func NewDecodeError(err error) error {
	return &DecodeError{ProviderError{Op: "decode", Err: err}}
}
