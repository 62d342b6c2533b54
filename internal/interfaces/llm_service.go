package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMService defines the interface for language model completions. The
// provider (DeepSeek, Claude, Gemini) is selected by configuration; nodes
// depend only on this interface.
type LLMService interface {
	// Chat generates a completion for the conversation history in
	// chronological order.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate is the single-prompt convenience over Chat: an optional
	// system prompt followed by one user prompt.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Provider returns the provider key ("deepseek", "claude", "gemini").
	Provider() string

	// HealthCheck verifies the provider is configured and reachable.
	HealthCheck(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}
