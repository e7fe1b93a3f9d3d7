// Package suggest finds candidate citations for uncited claims, either
// through the PaperTrail backend or by asking a chat model directly.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/papertrail/internal/model"
)

// Provider returns citation candidates for a claim text
type Provider interface {
	// Name returns the provider name
	Name() string

	// SuggestCitations returns candidates ordered from most to least relevant
	SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration
type Config struct {
	// Provider name: "backend", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// MaxSuggestions caps how many candidates are kept from one reply
	MaxSuggestions int

	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:       "backend",
		Timeout:        30,
		MaxTokens:      800,
		MaxSuggestions: 5,
	}
}

// ConfigFromModel converts the loaded configuration
func ConfigFromModel(cfg model.Config) Config {
	out := DefaultConfig()
	if cfg.Suggest.Provider != "" {
		out.Provider = cfg.Suggest.Provider
	}
	out.Model = cfg.Suggest.Model
	out.APIKey = cfg.Suggest.APIKey
	out.BaseURL = cfg.Suggest.BaseURL
	if cfg.Suggest.Timeout > 0 {
		out.Timeout = cfg.Suggest.Timeout
	}
	if cfg.Suggest.MaxTokens > 0 {
		out.MaxTokens = cfg.Suggest.MaxTokens
	}
	out.HTTPProxy = cfg.API.HTTPProxy
	out.HTTPSProxy = cfg.API.HTTPSProxy
	return out
}

const systemPrompt = "You are a research assistant that proposes published sources for scientific claims. You answer with JSON only."

// BuildPrompt asks for a JSON array of citation candidates for text
func BuildPrompt(text string, max int) string {
	if max <= 0 {
		max = 5
	}
	return fmt.Sprintf(`Suggest up to %d published works that could be cited to support the claim below.

RULES:
1. Only propose works you are confident exist. Fewer is better than invented.
2. Answer with a JSON array and nothing else. Each element has:
   "title" (string, required), "url" (string, DOI or publisher link, may be empty),
   "authors" (array of strings), "venue" (string), "year" (integer).
3. Do not explain your answer.

Claim:
%s`, max, strings.TrimSpace(text))
}

// parseSuggestions extracts the JSON array from a model reply. Replies
// wrapped in a code fence or surrounded by prose are accepted. Entries
// without a title are dropped and invalid URLs are cleared.
func parseSuggestions(reply string, max int) ([]model.Suggestion, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var raw []model.Suggestion
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	out := make([]model.Suggestion, 0, len(raw))
	for _, s := range raw {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		s.URL = cleanURL(s.URL)
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

func cleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
