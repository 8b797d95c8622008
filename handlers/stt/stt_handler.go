package stt

import (
	"context"
	"errors"
	"strings"

	"voiceassist/core"
	"voiceassist/metrics"
)

// ISTTService transcribes one complete recording.
type ISTTService interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type STTHandler struct {
	service        ISTTService
	backupServices []ISTTService
	config         STTConfig
	notifier       core.Notifier
	logger         *core.Logger
}

func NewSTTHandler(service ISTTService, config STTConfig, logger *core.Logger) *STTHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &STTHandler{
		service:  service,
		config:   config,
		notifier: core.NopNotifier,
		logger:   logger.With(map[string]interface{}{"component": "stt"}),
	}
}

// WithBackupService registers a fallback service used when the primary fails.
// Returns the handler to allow chaining.
func (h *STTHandler) WithBackupService(service ISTTService) *STTHandler {
	h.backupServices = append(h.backupServices, service)
	return h
}

// WithNotifier sets where the transcription failure notice goes.
func (h *STTHandler) WithNotifier(n core.Notifier) *STTHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

// Transcribe returns the trimmed transcript of audio. Services are tried in
// registration order; when all fail the last error is returned as a
// *core.TranscriptionError and the failure notice is raised.
func (h *STTHandler) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) < h.config.MinAudioBytes {
		h.logger.Debug("recording too short, skipping transcription", "bytes", len(audio))
		return "", nil
	}

	var lastErr error
	services := append([]ISTTService{h.service}, h.backupServices...)
	for _, svc := range services {
		if svc == nil {
			continue
		}
		text, err := svc.Transcribe(ctx, audio)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var te *core.TranscriptionError
		if !errors.As(err, &te) {
			err = core.NewTranscriptionError(svc.Name(), 0, err)
		}
		metrics.ObserveProviderError(err)
		h.logger.Warn("transcription failed", "service", svc.Name(), "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = core.NewTranscriptionError("", 0, errors.New("no transcription service configured"))
	}
	if h.config.FailedNotice != "" {
		h.notifier.Notify(core.Notice{Level: core.NoticeError, Message: h.config.FailedNotice})
	}
	return "", lastErr
}
