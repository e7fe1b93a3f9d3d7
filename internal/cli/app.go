package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/ppiankov/papertrail/internal/api"
	"github.com/ppiankov/papertrail/internal/cache"
	"github.com/ppiankov/papertrail/internal/credential"
	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/suggest"
	"github.com/ppiankov/papertrail/internal/telemetry"
)

// app bundles the collaborators a command needs
type app struct {
	cfg      *model.Config
	logger   *slog.Logger
	client   *api.Client
	creds    *credential.Store
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	client, err := api.NewClient(cfg.API, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	path, err := credential.DefaultPath()
	if err != nil {
		return nil, err
	}
	creds := credential.NewStore(path)
	if err := creds.Init(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		creds:    creds,
		registry: registry,
		metrics:  metrics,
	}, nil
}

// credential resolves the API key: --api-key or PAPERTRAIL_API_KEY, then
// the saved key
func (a *app) credential() (string, error) {
	if key := strings.TrimSpace(viper.GetString("api_key")); key != "" {
		return key, nil
	}
	if key := a.creds.Key(); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key: run 'papertrail login' or set PAPERTRAIL_API_KEY")
}

// suggester builds the configured provider behind the suggestion cache
func (a *app) suggester() (suggest.Provider, error) {
	cfg := suggest.ConfigFromModel(*a.cfg)
	provider, err := suggest.NewProvider(cfg, a.client)
	if err != nil {
		return nil, err
	}

	dir := a.cfg.Suggest.CacheDir
	if dir == "" {
		if base, err := configDir(); err == nil {
			dir = filepath.Join(base, "cache", "suggest")
		}
	}
	c := openSuggestCache(a.cfg.Suggest.CacheTTL, dir, a.logger)
	return suggest.WithCache(provider, c, a.cfg.Suggest.CacheTTL, cfg.Model), nil
}

// openSuggestCache opens the suggestion cache and drops expired disk entries
func openSuggestCache(ttl time.Duration, dir string, logger *slog.Logger) cache.Cache {
	c := cache.New(ttl, dir)
	if p, ok := c.(cache.Pruner); ok {
		if n, err := p.Prune(); err != nil {
			logger.Warn("pruning suggestion cache", "dir", dir, "error", err)
		} else if n > 0 {
			logger.Debug("pruned suggestion cache", "dir", dir, "removed", n)
		}
	}
	return c
}

// serveMetrics exposes /metrics on addr until ctx ends. An empty addr is a
// no-op.
func (a *app) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(a.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("serving metrics", "addr", addr)
}

// readDocument loads a file to upload
func readDocument(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return model.Document{Name: filepath.Base(path), Data: data}, nil
}

// readClaims loads a claim snapshot written by 'papertrail stream'
func readClaims(path string) ([]model.Claim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse claims %s: %w", path, err)
	}
	return snap.Claims, nil
}

// snapshot is the JSON document commands read and write
type snapshot struct {
	JobID  string        `json:"jobId,omitempty"`
	Claims []model.Claim `json:"claims"`
}

// writeSnapshot writes claims to path, or stdout when path is "" or "-"
func writeSnapshot(path, jobID string, claims []model.Claim) error {
	if claims == nil {
		claims = []model.Claim{}
	}
	data, err := json.MarshalIndent(snapshot{JobID: jobID, Claims: claims}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write claims: %w", err)
	}
	return nil
}

// readSnapshotJob returns the job id recorded in a snapshot file
func readSnapshotJob(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var snap snapshot
	if json.Unmarshal(data, &snap) != nil {
		return ""
	}
	return snap.JobID
}
