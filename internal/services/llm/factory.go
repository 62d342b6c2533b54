// Package llm provides the language model services behind report
// generation. The provider is selected by llm.mode; every provider
// implements the same chat interface so the workflow nodes never know
// which one is wired.
package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

// NewLLMService creates the configured LLM provider.
func NewLLMService(cfg *common.LLMConfig, logger arbor.ILogger) (interfaces.LLMService, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}

	logger.Info().Str("mode", string(cfg.Mode)).Msg("Initializing LLM service")

	switch cfg.Mode {
	case common.LLMProviderDeepSeek:
		return NewDeepSeekService(&cfg.DeepSeek, logger)
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, logger)
	default:
		return nil, common.E(common.KindInvalidInput, "llm.new",
			fmt.Sprintf("invalid llm mode %q: must be deepseek, claude, or gemini", cfg.Mode))
	}
}
