package suggest

import (
	"context"

	"github.com/ppiankov/papertrail/internal/model"
)

// BackendClient is the part of the backend API client used for suggestions
type BackendClient interface {
	SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error)
}

// BackendProvider delegates to the PaperTrail backend's suggest endpoint
type BackendProvider struct {
	client BackendClient
}

// NewBackendProvider creates a provider over the backend client
func NewBackendProvider(client BackendClient) (*BackendProvider, error) {
	if client == nil {
		return nil, model.Missing("backend client")
	}
	return &BackendProvider{client: client}, nil
}

// Name returns the provider name
func (p *BackendProvider) Name() string {
	return "backend"
}

// IsAvailable reports true; reachability surfaces on the first call
func (p *BackendProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func (p *BackendProvider) SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error) {
	return p.client.SuggestCitations(ctx, text)
}
