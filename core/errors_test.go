package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("turn: %w", NewSynthesisError("elevenlabs", 429, cause))

	var se *SynthesisError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 429, se.Status)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "turn: synthesize (elevenlabs): status 429: connection refused", err.Error())

	var re *ReplyError
	assert.False(t, errors.As(err, &re))
	assert.Equal(t, "decode: bad header", NewDecodeError(errors.New("bad header")).Error())
}
