package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

const claudeDefaultModel = "claude-sonnet-4-20250514"

// ClaudeService implements LLMService using the Anthropic Messages API.
type ClaudeService struct {
	config  *common.ClaudeConfig
	client  *anthropic.Client
	model   string
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.LLMService = (*ClaudeService)(nil)

// NewClaudeService creates a Claude LLM service.
func NewClaudeService(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if cfg.APIKey == "" {
		return nil, common.E(common.KindInvalidInput, "llm.claude",
			"Anthropic API key is required (set ANTHROPIC_API_KEY or llm.claude.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = claudeDefaultModel
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	s := &ClaudeService{
		config:  cfg,
		client:  &client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Float64("temperature", cfg.Temperature).
		Msg("Claude LLM service initialized")

	return s, nil
}

// convertMessagesToClaude splits the conversation into Claude message
// params and the system prompt, which the Messages API carries separately.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string) {
	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText == "" {
				systemText = msg.Content
			}
		case interfaces.RoleAssistant:
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}
	return claudeMessages, systemText
}

// Chat generates a completion for the conversation history.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	const op = "llm.claude.chat"

	if len(messages) == 0 {
		return "", common.E(common.KindInvalidInput, op, "messages cannot be empty")
	}

	claudeMessages, systemText := convertMessagesToClaude(messages)
	if len(claudeMessages) == 0 {
		return "", common.E(common.KindInvalidInput, op, "at least one user message is required")
	}

	maxTokens := s.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(s.config.Temperature)
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.client.Messages.New(reqCtx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", common.Wrap(common.KindCancelled, op, ctx.Err())
		}
		return "", common.Wrap(common.KindTransientUpstream, op, err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", common.E(common.KindPermanentUpstream, op, "no text content in Claude response")
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude chat completion finished")

	return response.String(), nil
}

// Generate runs a single-prompt completion.
func (s *ClaudeService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]interfaces.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, interfaces.Message{Role: interfaces.RoleUser, Content: userPrompt})
	return s.Chat(ctx, messages)
}

// Provider returns the provider key.
func (s *ClaudeService) Provider() string {
	return string(common.LLMProviderClaude)
}

// HealthCheck exercises the API with a minimal probe.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	const op = "llm.claude.health"

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.Chat(probeCtx, []interfaces.Message{{Role: interfaces.RoleUser, Content: "ping"}})
	if err != nil {
		return common.Wrap(common.KindTransientUpstream, op, err)
	}
	if strings.TrimSpace(response) == "" {
		return common.E(common.KindPermanentUpstream, op, "probe returned empty response")
	}
	return nil
}

// Close releases provider resources.
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	return nil
}
