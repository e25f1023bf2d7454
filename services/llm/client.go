// Package llm holds the sampling oracle clients that drive reasoning
// sessions. The engine never imports this package; only the CLI loop
// and server wiring do.
package llm

import (
	"context"
	"errors"
	"fmt"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any sampling backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// FatalError wraps an oracle failure that retrying cannot fix (bad
// credentials, missing model, malformed request). The reasoning driver
// terminates the session on these instead of backing off.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal generation error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is unrecoverable for the current session.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// NewClient builds the configured backend. Supported backends are
// "ollama" and "openai".
func NewClient(backend string, cfg Config) (LLMClient, error) {
	switch backend {
	case "", "ollama":
		return NewOllamaClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", backend)
	}
}

// Config carries the backend connection settings. Zero values fall back
// to environment variables, matching container deployments.
type Config struct {
	// BaseURL is the Ollama server address, e.g. http://localhost:11434.
	BaseURL string

	// Model names the model to sample from.
	Model string

	// APIKey authenticates against hosted backends. Ignored by Ollama.
	APIKey string
}
