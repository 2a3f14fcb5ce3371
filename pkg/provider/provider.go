// Package provider wraps the external embedding and completion services
// the router and agents depend on. Both calls are blocking and may fail;
// callers are expected to degrade rather than propagate provider errors.
package provider

import (
	"context"
	"fmt"
)

// Completer is an opaque text-completion call
type Completer interface {
	// Complete sends a prompt and returns the raw completion text
	Complete(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name
	Provider() string
}

// Embedder generates vector embeddings from text
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// AuthProfile represents authentication credentials for a provider
type AuthProfile struct {
	Provider string `json:"provider" mapstructure:"provider"` // "openai", "anthropic"
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
}

// Factory creates providers from auth profiles
type Factory struct{}

// NewCompleter creates a completion provider based on the auth profile
func (f *Factory) NewCompleter(profile AuthProfile) (Completer, error) {
	switch profile.Provider {
	case "openai":
		return NewOpenAICompleter(profile.APIKey, profile.Model), nil
	case "anthropic":
		return NewAnthropicCompleter(profile.APIKey, profile.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// NewEmbedder creates an embedding provider based on the auth profile
func (f *Factory) NewEmbedder(profile AuthProfile) (Embedder, error) {
	switch profile.Provider {
	case "openai":
		return NewOpenAIEmbedder(profile.APIKey, profile.Model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", profile.Provider)
	}
}
