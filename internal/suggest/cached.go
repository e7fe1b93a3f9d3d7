package suggest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/papertrail/internal/cache"
	"github.com/ppiankov/papertrail/internal/model"
)

// CachedProvider serves repeated requests for the same trimmed text from
// a cache. Failures are never cached.
type CachedProvider struct {
	Provider
	cache cache.Cache
	ttl   time.Duration
	model string
}

// WithCache wraps p so results are cached for ttl
func WithCache(p Provider, c cache.Cache, ttl time.Duration, modelName string) *CachedProvider {
	return &CachedProvider{Provider: p, cache: c, ttl: ttl, model: modelName}
}

func (p *CachedProvider) SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.Missing("claim text")
	}

	key := cache.Key(p.Provider.Name(), p.model, text)
	var cached []model.Suggestion
	if cache.GetJSON(p.cache, key, &cached) {
		slog.Debug("suggestions served from cache", "provider", p.Provider.Name(), "count", len(cached))
		return cached, nil
	}

	suggestions, err := p.Provider.SuggestCitations(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(p.cache, key, suggestions, p.ttl); err != nil {
		slog.Warn("could not cache suggestions", "error", err)
	}
	return suggestions, nil
}
