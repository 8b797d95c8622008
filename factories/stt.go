package factories

import (
	"errors"

	"voiceassist/core"
	stthandler "voiceassist/handlers/stt"
	deepgramstt "voiceassist/services/deepgram/stt"

	"github.com/bytedance/sonic"
)

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	DeepgramConfig *deepgramstt.DeepgramConfig `json:"deepgram,omitempty"`
}

// BuildSTTService constructs an ISTTService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (stthandler.ISTTService, error) {
	if config.DeepgramConfig != nil {
		svc, err := deepgramstt.NewDeepgramSTTService(config.DeepgramConfig, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}

// UnmarshalJSON replaces the whole provider selection, so a settings file
// naming a provider does not inherit the default one.
func (c *STTFactoryConfig) UnmarshalJSON(data []byte) error {
	type plain STTFactoryConfig
	var p plain
	if err := sonic.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = STTFactoryConfig(p)
	return nil
}
