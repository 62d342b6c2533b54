package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

const (
	deepSeekDefaultBaseURL = "https://api.deepseek.com"
	deepSeekDefaultModel   = "deepseek-chat"
)

// DeepSeekService implements LLMService against the DeepSeek chat
// completions API. The wire format is OpenAI-compatible JSON, so the
// client is a plain HTTP client rather than an SDK binding.
type DeepSeekService struct {
	config     *common.DeepSeekConfig
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     arbor.ILogger
}

var _ interfaces.LLMService = (*DeepSeekService)(nil)

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepSeekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
	Stream      bool              `json:"stream"`
}

type deepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewDeepSeekService creates a DeepSeek LLM service.
func NewDeepSeekService(cfg *common.DeepSeekConfig, logger arbor.ILogger) (*DeepSeekService, error) {
	if cfg.APIKey == "" {
		return nil, common.E(common.KindInvalidInput, "llm.deepseek",
			"DeepSeek API key is required (set DEEPSEEK_API_KEY or llm.deepseek.api_key)")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = deepSeekDefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = deepSeekDefaultModel
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	s := &DeepSeekService{
		config:     cfg,
		baseURL:    baseURL,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", timeout).
		Float64("temperature", cfg.Temperature).
		Msg("DeepSeek LLM service initialized")

	return s, nil
}

// Chat generates a completion for the conversation history.
func (s *DeepSeekService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	const op = "llm.deepseek.chat"

	if len(messages) == 0 {
		return "", common.E(common.KindInvalidInput, op, "messages cannot be empty")
	}

	wireMessages := make([]deepSeekMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		switch role {
		case interfaces.RoleSystem, interfaces.RoleUser, interfaces.RoleAssistant:
		default:
			role = interfaces.RoleUser
		}
		wireMessages = append(wireMessages, deepSeekMessage{Role: role, Content: msg.Content})
	}

	maxTokens := s.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body, err := json.Marshal(deepSeekRequest{
		Model:       s.model,
		Messages:    wireMessages,
		MaxTokens:   maxTokens,
		Temperature: s.config.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", common.Wrap(common.KindInternal, op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", common.Wrap(common.KindInternal, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", common.Wrap(common.KindCancelled, op, ctx.Err())
		}
		return "", common.Wrap(common.KindTransientUpstream, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		kind := common.KindPermanentUpstream
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = common.KindTransientUpstream
		}
		return "", common.E(kind, op,
			fmt.Sprintf("DeepSeek API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var parsed deepSeekResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", common.Wrap(common.KindPermanentUpstream, op, err)
	}
	if parsed.Error != nil {
		return "", common.E(common.KindPermanentUpstream, op, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", common.E(common.KindPermanentUpstream, op, "no completion in DeepSeek response")
	}

	content := parsed.Choices[0].Message.Content
	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(content)).
		Dur("duration", time.Since(start)).
		Msg("DeepSeek chat completion finished")

	return content, nil
}

// Generate runs a single-prompt completion.
func (s *DeepSeekService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]interfaces.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, interfaces.Message{Role: interfaces.RoleUser, Content: userPrompt})
	return s.Chat(ctx, messages)
}

// Provider returns the provider key.
func (s *DeepSeekService) Provider() string {
	return string(common.LLMProviderDeepSeek)
}

// HealthCheck verifies the API key is accepted by the models endpoint.
func (s *DeepSeekService) HealthCheck(ctx context.Context) error {
	const op = "llm.deepseek.health"

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.baseURL+"/models", nil)
	if err != nil {
		return common.Wrap(common.KindInternal, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return common.Wrap(common.KindTransientUpstream, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := common.KindPermanentUpstream
		if resp.StatusCode >= 500 {
			kind = common.KindTransientUpstream
		}
		return common.E(kind, op, fmt.Sprintf("models endpoint returned status %d", resp.StatusCode))
	}
	return nil
}

// Close releases provider resources.
func (s *DeepSeekService) Close() error {
	s.logger.Debug().Msg("Closing DeepSeek LLM service")
	return nil
}
