package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/papertrail/internal/cache"
	"github.com/ppiankov/papertrail/internal/model"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		max     int
		want    []string
		wantErr bool
	}{
		{"bare array", `[{"title":"A"},{"title":"B"}]`, 0, []string{"A", "B"}, false},
		{"code fence", "```json\n[{\"title\":\"A\"}]\n```", 0, []string{"A"}, false},
		{"prose around", `Sure! [{"title":" A "}] Hope that helps.`, 0, []string{"A"}, false},
		{"drops untitled", `[{"title":""},{"url":"https://x"},{"title":"C"}]`, 0, []string{"C"}, false},
		{"capped", `[{"title":"A"},{"title":"B"},{"title":"C"}]`, 2, []string{"A", "B"}, false},
		{"empty array", `[]`, 0, []string{}, false},
		{"no array", `no idea`, 0, nil, true},
		{"broken json", `[{"title":}]`, 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.reply, tt.max)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d suggestions, want %d", len(got), len(tt.want))
			}
			for i, title := range tt.want {
				if got[i].Title != title {
					t.Errorf("suggestion %d: got %q, want %q", i, got[i].Title, title)
				}
			}
		})
	}
}

func TestCleanURL(t *testing.T) {
	cases := map[string]string{
		"":                             "",
		"  https://doi.org/10.1/x  ":   "https://doi.org/10.1/x",
		"http://example.com/paper.pdf": "http://example.com/paper.pdf",
		"doi:10.1/x":                   "",
		"ftp://example.com":            "",
		"https://":                     "",
	}
	for in, want := range cases {
		if got := cleanURL(in); got != want {
			t.Errorf("cleanURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  Attention is all you need  ", 3)
	if !strings.Contains(p, "up to 3 published works") {
		t.Error("prompt must carry the limit")
	}
	if !strings.HasSuffix(p, "Claim:\nAttention is all you need") {
		t.Errorf("prompt must end with the trimmed claim, got %q", p)
	}
}

type countingBackend struct {
	calls int
	err   error
}

func (b *countingBackend) SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return []model.Suggestion{{Title: "for " + text, URL: "https://x"}}, nil
}

func TestNewProvider(t *testing.T) {
	backend := &countingBackend{}

	tests := []struct {
		config  Config
		name    string
		wantErr bool
	}{
		{Config{}, "backend", false},
		{Config{Provider: "Backend"}, "backend", false},
		{Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{Config{Provider: "claude", APIKey: "k"}, "anthropic", false},
		{Config{Provider: "ollama", Model: "llama3.1"}, "ollama", false},
		{Config{Provider: "openai"}, "", true},
		{Config{Provider: "bard"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.config, backend)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%+v: expected error", tt.config)
			}
			continue
		}
		if err != nil {
			t.Errorf("%+v: unexpected error %v", tt.config, err)
			continue
		}
		if p.Name() != tt.name {
			t.Errorf("%+v: got provider %s, want %s", tt.config, p.Name(), tt.name)
		}
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Suggest.Provider = "anthropic"
	cfg.Suggest.APIKey = "sk"
	cfg.API.HTTPSProxy = "http://proxy:3128"

	got := ConfigFromModel(*cfg)
	if got.Provider != "anthropic" || got.APIKey != "sk" || got.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("unexpected config %+v", got)
	}
	if got.Timeout != 30 || got.MaxTokens != 800 || got.MaxSuggestions != 5 {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestCachedProvider(t *testing.T) {
	backend := &countingBackend{}
	inner, err := NewBackendProvider(backend)
	if err != nil {
		t.Fatal(err)
	}
	p := WithCache(inner, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour, "")

	first, err := p.SuggestCitations(context.Background(), "  GNNs  ")
	if err != nil {
		t.Fatalf("SuggestCitations: %v", err)
	}
	second, err := p.SuggestCitations(context.Background(), "GNNs")
	if err != nil {
		t.Fatalf("SuggestCitations: %v", err)
	}

	if backend.calls != 1 {
		t.Errorf("expected one backend call, got %d", backend.calls)
	}
	if len(second) != 1 || second[0].Title != first[0].Title || first[0].Title != "for GNNs" {
		t.Errorf("unexpected cached result %+v", second)
	}
	if p.Name() != "backend" {
		t.Errorf("wrapper must keep the provider name, got %s", p.Name())
	}
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	backend := &countingBackend{err: errors.New("boom")}
	inner, _ := NewBackendProvider(backend)
	p := WithCache(inner, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour, "")

	_, _ = p.SuggestCitations(context.Background(), "x")
	_, _ = p.SuggestCitations(context.Background(), "x")
	if backend.calls != 2 {
		t.Errorf("failures must not be cached, got %d calls", backend.calls)
	}

	if _, err := p.SuggestCitations(context.Background(), "   "); err == nil {
		t.Error("blank text must be rejected")
	}
}
