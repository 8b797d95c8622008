package core

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little endian pulse-code modulation.
	ULAW                            // G.711 µ-law encoding format.
	ALAW                            // G.711 A-law encoding format.
	WAV                             // RIFF/WAVE container around 16-bit PCM.
)

func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	case WAV:
		return "wav"
	default:
		return "unknown"
	}
}

// AudioClip is a complete, self-contained piece of audio: a synthesized
// utterance or a recorded user submission.
type AudioClip struct {
	Data       []byte              // Raw audio data.
	SampleRate int                 // Sample rate of the audio data. Ignored for WAV, which carries its own.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
}

// DurationSeconds is only meaningful for PCM clips.
func (c AudioClip) DurationSeconds() float64 {
	if c.Format != PCM || c.SampleRate == 0 || c.Channels == 0 {
		return 0.0
	}
	bytesPerSample := 2
	totalSamples := len(c.Data) / (bytesPerSample * c.Channels)
	return float64(totalSamples) / float64(c.SampleRate)
}
