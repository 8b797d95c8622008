package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"voiceassist/core"

	"github.com/zaf/g711"
)

const (
	// G.711 telephony audio is always 8kHz mono.
	g711SampleRate = 8000

	wavHeaderSize  = 44
	bitsPerSample  = 16
	audioFormatPCM = 1
)

// Pool for WAV header buffers (typically 44-46 bytes)
var wavHeaderPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64))
	},
}

// ULawBytesToPCM converts µ-law bytes to PCM bytes
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law bytes to PCM bytes
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little endian).
// Supports mono or stereo.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return nil, err
	}
	if numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	buf := wavHeaderPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		wavHeaderPool.Put(buf)
	}()

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	result := make([]byte, buf.Len()+len(pcm))
	copy(result, buf.Bytes())
	copy(result[buf.Len():], pcm)
	return result, nil
}

// ValidatePCMData validates PCM byte array for basic integrity
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if len(pcm)%2 != 0 {
		return errors.New("PCM data must have even length (16-bit samples)")
	}
	if numChannels <= 0 {
		return errors.New("invalid number of channels")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// WAVInfo describes the fmt chunk of a WAV file.
type WAVInfo struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// ParseWAV returns the fmt description and the data chunk of a RIFF/WAVE buffer.
// Streaming writers (espeak --stdout, for instance) leave the data size as
// 0xFFFFFFFF; in that case everything after the data header is returned.
func ParseWAV(buf []byte) (WAVInfo, []byte, error) {
	var info WAVInfo
	if len(buf) < 12 || !bytes.HasPrefix(buf, []byte("RIFF")) || !bytes.Equal(buf[8:12], []byte("WAVE")) {
		return info, nil, errors.New("invalid WAV: missing RIFF/WAVE header")
	}

	haveFmt := false
	i := 12
	for i+8 <= len(buf) {
		chunkID := string(buf[i : i+4])
		chunkSize := int(binary.LittleEndian.Uint32(buf[i+4 : i+8]))
		body := i + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(buf) {
				return info, nil, errors.New("invalid WAV: short fmt chunk")
			}
			info.AudioFormat = binary.LittleEndian.Uint16(buf[body : body+2])
			info.Channels = int(binary.LittleEndian.Uint16(buf[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(buf[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(buf[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return info, nil, errors.New("invalid WAV: data chunk before fmt chunk")
			}
			end := body + chunkSize
			if chunkSize < 0 || end > len(buf) || end < body {
				end = len(buf)
			}
			return info, buf[body:end], nil
		}

		next := body + chunkSize
		if chunkSize%2 != 0 {
			next++
		}
		if next <= i || next > len(buf) {
			break
		}
		i = next
	}
	return info, nil, errors.New("invalid WAV: data chunk not found")
}

// Decode turns a synthesized clip into playable 16-bit PCM. Every failure is
// reported as a *core.DecodeError.
func Decode(clip core.AudioClip) (core.AudioClip, error) {
	if len(clip.Data) == 0 {
		return core.AudioClip{}, core.NewDecodeError(errors.New("empty audio buffer"))
	}

	out := core.AudioClip{Format: core.PCM, SampleRate: clip.SampleRate, Channels: clip.Channels}
	if out.Channels == 0 {
		out.Channels = 1
	}

	switch clip.Format {
	case core.PCM:
		out.Data = clip.Data
	case core.ULAW:
		out.Data = ULawBytesToPCM(clip.Data)
		out.SampleRate, out.Channels = g711SampleRate, 1
	case core.ALAW:
		out.Data = ALawBytesToPCM(clip.Data)
		out.SampleRate, out.Channels = g711SampleRate, 1
	case core.WAV:
		info, data, err := ParseWAV(clip.Data)
		if err != nil {
			return core.AudioClip{}, core.NewDecodeError(err)
		}
		if info.AudioFormat != audioFormatPCM || info.BitsPerSample != bitsPerSample {
			return core.AudioClip{}, core.NewDecodeError(fmt.Errorf("unsupported WAV encoding: format=%d bits=%d", info.AudioFormat, info.BitsPerSample))
		}
		out.Data, out.SampleRate, out.Channels = data, info.SampleRate, info.Channels
	default:
		return core.AudioClip{}, core.NewDecodeError(fmt.Errorf("unsupported audio format %s", clip.Format))
	}

	if out.SampleRate <= 0 {
		return core.AudioClip{}, core.NewDecodeError(errors.New("missing sample rate"))
	}
	if err := ValidatePCMData(out.Data, out.Channels); err != nil {
		return core.AudioClip{}, core.NewDecodeError(err)
	}
	return out, nil
}

// EncodeWAV wraps a PCM clip for players that expect a container.
func EncodeWAV(clip core.AudioClip) ([]byte, error) {
	if clip.Format != core.PCM {
		return nil, fmt.Errorf("encode wav: expected pcm clip, got %s", clip.Format)
	}
	return PCMBytesToWavBytes(clip.Data, clip.Channels, clip.SampleRate)
}
