package llm

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiService implements LLMService using the Gemini API. Rate-limit
// rejections are retried with the API-suggested delay when the error
// carries one.
type GeminiService struct {
	config  *common.GeminiConfig
	client  *genai.Client
	model   string
	timeout time.Duration
	retry   *RetryConfig
	logger  arbor.ILogger
}

var _ interfaces.LLMService = (*GeminiService)(nil)

// NewGeminiService creates a Gemini LLM service.
func NewGeminiService(cfg *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, common.E(common.KindInvalidInput, "llm.gemini",
			"Gemini API key is required (set GEMINI_API_KEY or llm.gemini.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, common.Wrap(common.KindPermanentUpstream, "llm.gemini", err)
	}

	s := &GeminiService{
		config:  cfg,
		client:  client,
		model:   model,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
		logger:  logger,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Float64("temperature", cfg.Temperature).
		Msg("Gemini LLM service initialized")

	return s, nil
}

// convertMessagesToGemini splits the conversation into Gemini contents and
// the system instruction, which the API carries separately.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		switch msg.Role {
		case interfaces.RoleSystem:
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		case interfaces.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents, systemText
}

// Chat generates a completion for the conversation history, retrying
// rate-limit rejections with backoff.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	const op = "llm.gemini.chat"

	if len(messages) == 0 {
		return "", common.E(common.KindInvalidInput, op, "messages cannot be empty")
	}

	contents, systemText := convertMessagesToGemini(messages)
	if len(contents) == 0 {
		return "", common.E(common.KindInvalidInput, op, "at least one user message is required")
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(s.config.Temperature)),
	}
	if s.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(s.config.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		response, err := s.generate(ctx, contents, config)
		if err == nil {
			s.logger.Debug().
				Int("message_count", len(messages)).
				Int("response_length", len(response)).
				Int("attempts", attempt+1).
				Dur("duration", time.Since(start)).
				Msg("Gemini chat completion finished")
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", common.Wrap(common.KindCancelled, op, ctx.Err())
		}
		if !IsRateLimitError(err) || attempt == s.retry.MaxRetries {
			break
		}

		backoff := s.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Gemini rate limited, backing off before retry")

		select {
		case <-ctx.Done():
			return "", common.Wrap(common.KindCancelled, op, ctx.Err())
		case <-time.After(backoff):
		}
	}

	kind := common.KindPermanentUpstream
	if IsRateLimitError(lastErr) {
		kind = common.KindTransientUpstream
	}
	return "", common.Wrap(kind, op, lastErr)
}

func (s *GeminiService) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Models.GenerateContent(reqCtx, s.model, contents, config)
	if err != nil {
		return "", err
	}

	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}
	if response.Len() == 0 {
		return "", common.E(common.KindPermanentUpstream, "llm.gemini.chat", "no text content in Gemini response")
	}
	return response.String(), nil
}

// Generate runs a single-prompt completion.
func (s *GeminiService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]interfaces.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, interfaces.Message{Role: interfaces.RoleUser, Content: userPrompt})
	return s.Chat(ctx, messages)
}

// Provider returns the provider key.
func (s *GeminiService) Provider() string {
	return string(common.LLMProviderGemini)
}

// HealthCheck exercises the API with a minimal probe.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	const op = "llm.gemini.health"

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
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}
