package tts

import (
	"context"
	"errors"
	"os"
	"testing"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEspeakSynthesize(t *testing.T) {
	var gotName string
	var gotArgs []string
	s := &SystemTTS{
		engine: "espeak-ng",
		config: Config{Voice: "en-us+f3", Rate: 170},
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotName, gotArgs = name, args
			return []byte("RIFF....WAVE"), nil
		},
		logger: core.NewNopLogger(),
	}

	clip, err := s.Synthesize(context.Background(), "-hello")
	require.NoError(t, err)
	assert.Equal(t, core.WAV, clip.Format)
	assert.Equal(t, "espeak-ng", gotName)
	assert.Equal(t, []string{"--stdout", "-v", "en-us+f3", "-s", "170", "--", "-hello"}, gotArgs)
}

func TestSaySynthesizeReadsTempFile(t *testing.T) {
	s := &SystemTTS{
		engine: "say",
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			require.Equal(t, "say", name)
			require.Equal(t, "-o", args[0])
			return nil, os.WriteFile(args[1], []byte("RIFFwav"), 0o644)
		},
		logger: core.NewNopLogger(),
	}

	clip, err := s.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFwav"), clip.Data)
}

func TestSynthesizeFailure(t *testing.T) {
	s := &SystemTTS{
		engine: "espeak",
		run: func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("exit status 1")
		},
		logger: core.NewNopLogger(),
	}
	_, err := s.Synthesize(context.Background(), "hi")
	var se *core.SynthesisError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "system", se.Provider)
}

func TestNewRejectsMissingEngine(t *testing.T) {
	_, err := NewSystemTTS(Config{Engine: "definitely-not-a-speech-engine"}, nil)
	assert.Error(t, err)
}
