package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"voiceassist/core"

	"github.com/sashabaranov/go-openai"
)

const providerName = "openai"

// OpenAILLMService implements llm.LLMService against the OpenAI chat
// completions API or any compatible endpoint.
type OpenAILLMService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	streaming   bool
	logger      *core.Logger
}

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url"` // Empty uses api.openai.com.
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Streaming   bool    `json:"streaming"`
}

// DefaultConfig returns the settings used for voice replies.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4o,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) (*OpenAILLMService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAILLMService{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		streaming:   config.Streaming,
		logger:      logger,
	}, nil
}

func (s *OpenAILLMService) Name() string { return providerName }

// GenerateReply runs one completion and returns the full reply text.
func (s *OpenAILLMService) GenerateReply(ctx context.Context, messages []core.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    s.convertMessages(messages),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	var (
		reply string
		err   error
	)
	if s.streaming {
		reply, err = s.runStreamingCompletion(ctx, req)
	} else {
		reply, err = s.runNonStreamingCompletion(ctx, req)
	}
	if err != nil {
		return "", core.NewReplyError(providerName, statusOf(err), err)
	}
	return reply, nil
}

// runStreamingCompletion accumulates streamed deltas into one reply.
func (s *OpenAILLMService) runStreamingCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion stream: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stream receive: %w", err)
		}
		if len(response.Choices) > 0 {
			b.WriteString(response.Choices[0].Delta.Content)
		}
	}
	return b.String(), nil
}

// runNonStreamingCompletion handles non-streaming responses
func (s *OpenAILLMService) runNonStreamingCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	s.logger.Debug("completion finished", "model", resp.Model, "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// convertMessages converts core messages to OpenAI messages
func (s *OpenAILLMService) convertMessages(messages []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    s.convertRole(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// convertRole converts core role to OpenAI role
func (s *OpenAILLMService) convertRole(role core.MessageRole) string {
	switch role {
	case core.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// statusOf extracts the HTTP status carried by go-openai errors, 0 if none.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
