package tts

import (
	"context"
	"errors"

	"voiceassist/core"
	"voiceassist/metrics"
)

// TTSService turns one utterance into a playable clip.
type TTSService interface {
	Name() string
	Synthesize(ctx context.Context, text string) (core.AudioClip, error)
}

type TTSHandler struct {
	service        TTSService
	backupServices []TTSService
	config         TTSConfig
	notifier       core.Notifier
	logger         *core.Logger
}

func NewTTSHandler(service TTSService, config TTSConfig, logger *core.Logger) *TTSHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TTSHandler{
		service:  service,
		config:   config,
		notifier: core.NopNotifier,
		logger:   logger.With(map[string]interface{}{"component": "tts"}),
	}
}

// WithBackupService registers a fallback service used when the primary fails.
// Returns the handler to allow chaining.
func (h *TTSHandler) WithBackupService(service TTSService) *TTSHandler {
	if service != nil {
		h.backupServices = append(h.backupServices, service)
	}
	return h
}

// WithNotifier sets where fallback and failure notices go.
func (h *TTSHandler) WithNotifier(n core.Notifier) *TTSHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

// Synthesize speaks text with the primary service, falling back to the
// backups in order. Text that normalizes to nothing yields an empty clip and
// no error. A cancelled ctx is returned as is and never triggers fallback.
func (h *TTSHandler) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	text = truncateAtSentence(normalizeTextForTTS(text), h.config.MaxTextLength)
	if text == "" {
		return core.AudioClip{}, nil
	}

	var lastErr error
	services := append([]TTSService{h.service}, h.backupServices...)
	for i, svc := range services {
		if svc == nil {
			continue
		}
		if i > 0 && lastErr != nil {
			metrics.SynthesisFallbacks.Inc()
			if h.config.FallbackNotice != "" {
				h.notifier.Notify(core.Notice{Level: core.NoticeInfo, Message: h.config.FallbackNotice})
			}
		}

		clip, err := svc.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				h.logger.Info("spoken by backup synthesizer", "service", svc.Name())
			}
			return clip, nil
		}
		if ctx.Err() != nil {
			return core.AudioClip{}, ctx.Err()
		}

		var se *core.SynthesisError
		if !errors.As(err, &se) {
			err = core.NewSynthesisError(svc.Name(), 0, err)
		}
		metrics.ObserveProviderError(err)
		h.logger.Warn("synthesis failed", "service", svc.Name(), "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = core.NewSynthesisError("", 0, errors.New("no synthesis service configured"))
	}
	if h.config.FailedNotice != "" {
		h.notifier.Notify(core.Notice{Level: core.NoticeError, Message: h.config.FailedNotice})
	}
	return core.AudioClip{}, lastErr
}
