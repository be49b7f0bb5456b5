// Package llm talks to chat and embedding models over HTTP.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is the single condition providers report for network,
// protocol and model errors.
var ErrUnavailable = errors.New("llm: generation unavailable")

// Provider is the interface for LLM interactions.
type Provider interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Config configures an LLM provider.
type Config struct {
	Provider string        `json:"provider"` // ollama, lmstudio, openai, gemini, custom
	Model    string        `json:"model"`
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"api_key"`
	Timeout  time.Duration `json:"timeout"` // per HTTP request; 0 means 300s
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "ollama" {
		return NewOllama(cfg), nil
	}
	if p, ok := presets[cfg.Provider]; ok {
		return newPreset(p, cfg), nil
	}
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm provider not specified")
	}
	return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
}

// unavailable wraps err as ErrUnavailable unless it is a context error,
// which callers see unchanged.
func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
