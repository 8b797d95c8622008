package audio

import (
	"errors"
	"testing"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav, err := PCMBytesToWavBytes(pcm, 1, 22050)
	require.NoError(t, err)
	require.Len(t, wav, wavHeaderSize+len(pcm))

	info, data, err := ParseWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 22050, info.SampleRate)
	assert.Equal(t, 16, info.BitsPerSample)
	assert.Equal(t, pcm, data)
}

func TestParseWAVStreamingSize(t *testing.T) {
	pcm := []byte{9, 0, 8, 0}
	wav, err := PCMBytesToWavBytes(pcm, 1, 16000)
	require.NoError(t, err)
	// data size as written by streaming encoders
	copy(wav[40:44], []byte{0xff, 0xff, 0xff, 0xff})

	_, data, err := ParseWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, pcm, data)
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	_, _, err := ParseWAV([]byte("not a wav file at all"))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	t.Run("pcm", func(t *testing.T) {
		out, err := Decode(core.AudioClip{Data: []byte{0, 1, 0, 1}, SampleRate: 22050, Format: core.PCM})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Channels)
		assert.Equal(t, 22050, out.SampleRate)
	})

	t.Run("ulaw expands to 16-bit at 8kHz", func(t *testing.T) {
		ulaw := []byte{0xff, 0x7f, 0x00}
		out, err := Decode(core.AudioClip{Data: ulaw, Format: core.ULAW})
		require.NoError(t, err)
		assert.Equal(t, core.PCM, out.Format)
		assert.Equal(t, 8000, out.SampleRate)
		assert.Len(t, out.Data, 2*len(ulaw))
	})

	t.Run("wav", func(t *testing.T) {
		wav, err := PCMBytesToWavBytes([]byte{1, 0, 1, 0}, 2, 44100)
		require.NoError(t, err)
		out, err := Decode(core.AudioClip{Data: wav, Format: core.WAV})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Channels)
		assert.Equal(t, 44100, out.SampleRate)
	})

	t.Run("failures are decode errors", func(t *testing.T) {
		bad := []core.AudioClip{
			{},
			{Data: []byte{1, 2, 3}, SampleRate: 8000, Format: core.PCM},
			{Data: []byte{1, 2}, Format: core.PCM},
			{Data: []byte("RIFF....WAVE"), Format: core.WAV},
		}
		for _, clip := range bad {
			_, err := Decode(clip)
			var de *core.DecodeError
			assert.True(t, errors.As(err, &de), "clip %+v: %v", clip, err)
		}
	})
}

func TestEncodeWAVRequiresPCM(t *testing.T) {
	_, err := EncodeWAV(core.AudioClip{Data: []byte{1, 2}, Format: core.ULAW})
	assert.Error(t, err)
}
