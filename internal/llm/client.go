// Package llm provides chat-completion clients for the taxonomy pipeline.
// The backend is treated as an unreliable, latency-bearing, rate-limited
// collaborator: clients bound per-call latency, retry rate limits, and never
// assume structured output beyond free text.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Client is the completion interface the pipeline depends on. The token
// budget differs per protocol phase (large for seeding, small for
// assignment), so callers pass it per request.
type Client interface {
	// CompleteWithSystem sends a system and user instruction and returns the
	// model's trimmed free-text response.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)

	// Model returns the configured model identifier.
	Model() string
}

// Config holds provider selection and connection settings.
type Config struct {
	Provider string // "openai" (any OpenAI-compatible backend) or "gemini"
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// New constructs a client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
