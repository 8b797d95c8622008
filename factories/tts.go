package factories

import (
	"errors"

	"voiceassist/core"
	ttshandler "voiceassist/handlers/tts"
	cartesia "voiceassist/services/cartesia/tts"
	deepgramtts "voiceassist/services/deepgram/tts"
	elevenlabs "voiceassist/services/elevenlabs/tts"
	systemtts "voiceassist/services/system/tts"

	"github.com/bytedance/sonic"
)

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
	DeepgramConfig   *deepgramtts.DeepgramTTSConfig  `json:"deepgram,omitempty"`
	CartesiaConfig   *cartesia.CartesiaTTSConfig     `json:"cartesia,omitempty"`
	SystemConfig     *systemtts.Config               `json:"system,omitempty"`
}

// BuildTTSService constructs a TTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (ttshandler.TTSService, error) {
	if config.ElevenLabsConfig != nil {
		svc, err := elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	if config.DeepgramConfig != nil {
		svc, err := deepgramtts.NewDeepgramTTS(*config.DeepgramConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	if config.CartesiaConfig != nil {
		svc, err := cartesia.NewCartesiaTTS(*config.CartesiaConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	if config.SystemConfig != nil {
		svc, err := systemtts.NewSystemTTS(*config.SystemConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}

// UnmarshalJSON replaces the whole provider selection, so a settings file
// naming a provider does not inherit the default one.
func (c *TTSFactoryConfig) UnmarshalJSON(data []byte) error {
	type plain TTSFactoryConfig
	var p plain
	if err := sonic.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = TTSFactoryConfig(p)
	return nil
}
