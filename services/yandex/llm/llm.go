package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voiceassist/core"

	"github.com/Morwran/yagpt"
)

const providerName = "yandexgpt"

// IAM tokens live for 12 hours; refresh well before that.
const iamTokenTTL = time.Hour

// Config holds the Yandex Cloud credentials.
type Config struct {
	OAuthToken string `json:"-"`
	FolderID   string `json:"folder_id"`
}

// YandexLLMService implements llm.LLMService on YandexGPT.
type YandexLLMService struct {
	ya      yagpt.YaGPTFace
	refresh func() (string, error)

	mu        sync.Mutex
	iamToken  string
	fetchedAt time.Time
	logger    *core.Logger
}

// NewYandexLLMService exchanges the OAuth token for an IAM token and
// prepares a client for the folder.
func NewYandexLLMService(config Config, logger *core.Logger) (*YandexLLMService, error) {
	if config.OAuthToken == "" || config.FolderID == "" {
		return nil, fmt.Errorf("yandex oauth token and folder id are required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	iam, err := yagpt.NewYaIam(config.OAuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	ya, err := yagpt.NewYagpt(config.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	s := &YandexLLMService{
		ya: ya,
		refresh: func() (string, error) {
			resp, err := iam.Create()
			if err != nil {
				return "", err
			}
			return resp.IamToken, nil
		},
		logger: logger,
	}
	if _, err := s.token(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *YandexLLMService) Name() string { return providerName }

func (s *YandexLLMService) token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.iamToken != "" && time.Since(s.fetchedAt) < iamTokenTTL {
		return s.iamToken, nil
	}
	tok, err := s.refresh()
	if err != nil {
		return "", fmt.Errorf("failed to create iam token: %w", err)
	}
	s.iamToken, s.fetchedAt = tok, time.Now()
	s.logger.Debug("yandex iam token refreshed")
	return tok, nil
}

// GenerateReply runs one completion on the lite model.
func (s *YandexLLMService) GenerateReply(ctx context.Context, messages []core.Message) (string, error) {
	tok, err := s.token()
	if err != nil {
		return "", core.NewReplyError(providerName, 0, err)
	}

	resp, err := s.ya.CompletionWithCtx(ctx, tok, convertMessages(messages))
	if err != nil {
		return "", core.NewReplyError(providerName, 0, fmt.Errorf("yagpt completion failed: %w", err))
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return "", core.NewReplyError(providerName, 0, fmt.Errorf("yagpt returned empty response"))
	}
	s.logger.Debug("completion finished", "model", yagpt.YaModelLite, "total_tokens", resp.Usage.TotalTokens)
	return resp.Alternatives[0].Message.Content, nil
}

func convertMessages(messages []core.Message) []yagpt.Message {
	out := make([]yagpt.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case core.MessageRoleSystem:
			out = append(out, yagpt.Message{Role: "system", Content: m.Content})
		case core.MessageRoleAssistant:
			out = append(out, yagpt.Message{Role: "assistant", Content: m.Content})
		default:
			out = append(out, yagpt.Message{Role: "user", Content: m.Content})
		}
	}
	return out
}
