// Package llm abstracts the text-generation backend the pipeline leans on.
// Every use of it is optional: callers carry deterministic fallbacks for a
// nil or failing provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/personafeed/config"
)

// Provider is the contract for LLM backends.
type Provider interface {
	// Generate generates text using the LLM
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)
}

var (
	ErrUnsupportedProvider = errors.New("unsupported llm provider type")
	ErrNotConfigured       = errors.New("no llm provider configured")
)

// NewProvider creates an LLM provider based on configuration. It returns
// ErrNotConfigured when no provider carries an API key, which callers treat
// as "run with fallbacks".
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNotConfigured
	}

	for _, provider := range cfg.Providers {
		if strings.TrimSpace(provider.APIKey) == "" {
			continue
		}
		switch provider.Type {
		case "openai":
			return NewOpenAIProvider(provider), nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider.Type)
		}
	}

	return nil, ErrNotConfigured
}
