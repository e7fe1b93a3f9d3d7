package suggest

import (
	"fmt"
	"strings"
)

// NewProvider creates the provider named in config. The backend provider
// uses backend; the others talk to their vendor directly.
func NewProvider(config Config, backend BackendClient) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "", "backend":
		return NewBackendProvider(backend)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown suggestion provider: %s (supported: backend, openai, anthropic, ollama)", config.Provider)
	}
}
