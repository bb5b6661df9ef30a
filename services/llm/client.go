package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
)

// GenerationParams are optional sampling controls. Nil fields leave the
// backend default in place.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}

// NewClient builds the backend selected by LLM_BACKEND_TYPE.
func NewClient(backend string) (LLMClient, error) {
	switch strings.ToLower(backend) {
	case "", "openai":
		return NewOpenAIClient()
	case "ollama":
		return NewOllamaClient()
	case "anthropic":
		return NewAnthropicClient()
	default:
		return nil, fmt.Errorf("unknown LLM backend %q (want openai, ollama or anthropic)", backend)
	}
}

// Float32Ptr is a small helper for building GenerationParams literals.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr is a small helper for building GenerationParams literals.
func IntPtr(v int) *int { return &v }
