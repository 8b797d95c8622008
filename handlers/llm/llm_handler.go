package llm

import (
	"context"
	"errors"
	"strings"

	"voiceassist/core"
	"voiceassist/metrics"
)

// LLMService produces one complete reply for the given messages. The first
// message is always the system prompt.
type LLMService interface {
	Name() string
	GenerateReply(ctx context.Context, messages []core.Message) (string, error)
}

var errEmptyReply = errors.New("empty reply")

type LLMHandler struct {
	service        LLMService
	backupServices []LLMService
	config         LLMHandlerConfig
	notifier       core.Notifier
	logger         *core.Logger
}

// NewLLMHandler creates a new LLM handler.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
// Chain WithBackupService and WithNotifier to register optional collaborators.
func NewLLMHandler(service LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Apology == "" {
		config.Apology = APOLOGY_REPLY
	}
	return &LLMHandler{
		service:  service,
		config:   config,
		notifier: core.NopNotifier,
		logger:   logger.With(map[string]interface{}{"component": "llm"}),
	}
}

// WithBackupService registers a fallback service used when the primary fails.
// Returns the handler to allow chaining.
func (h *LLMHandler) WithBackupService(service LLMService) *LLMHandler {
	h.backupServices = append(h.backupServices, service)
	return h
}

// WithNotifier sets where the reply failure notice goes.
func (h *LLMHandler) WithNotifier(n core.Notifier) *LLMHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

// buildRequest prepends the system prompt and drops any system messages the
// transcript carries.
func (h *LLMHandler) buildRequest(messages []core.Message) []core.Message {
	convo := core.FilterMessages(messages, func(m core.Message) bool {
		return m.Role != core.MessageRoleSystem
	})
	if h.config.MaxHistory > 0 && len(convo) > h.config.MaxHistory {
		convo = convo[len(convo)-h.config.MaxHistory:]
	}
	out := make([]core.Message, 0, len(convo)+1)
	if h.config.SystemPrompt != "" {
		out = append(out, core.Message{Role: core.MessageRoleSystem, Content: h.config.SystemPrompt})
	}
	return append(out, convo...)
}

// GenerateReply asks the primary service, then each backup in order. When all
// of them fail the configured apology is returned instead and a notice is
// raised, so the caller always has something to say. The error is only
// returned when ctx was cancelled.
func (h *LLMHandler) GenerateReply(ctx context.Context, messages []core.Message) (string, error) {
	req := h.buildRequest(messages)

	services := append([]LLMService{h.service}, h.backupServices...)
	for _, svc := range services {
		if svc == nil {
			continue
		}
		reply, err := svc.GenerateReply(ctx, req)
		if err == nil && strings.TrimSpace(reply) == "" {
			err = core.NewReplyError(svc.Name(), 0, errEmptyReply)
		}
		if err == nil {
			return strings.TrimSpace(reply), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var re *core.ReplyError
		if !errors.As(err, &re) {
			err = core.NewReplyError(svc.Name(), 0, err)
		}
		metrics.ObserveProviderError(err)
		h.logger.Warn("reply generation failed", "service", svc.Name(), "error", err)
	}

	h.notifier.Notify(core.Notice{Level: core.NoticeError, Message: REPLY_FAILED_NOTICE})
	return h.config.Apology, nil
}
