// Package api is the HTTP client for the PaperTrail backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/papertrail/internal/model"
	"github.com/ppiankov/papertrail/internal/util"
	"github.com/ppiankov/papertrail/internal/worker"
)

// Backend routes, relative to base URL + version
const (
	pathValidateAPIKey   = "/validate-api-key"
	pathUploadPaper      = "/upload-paper"
	pathStreamClaim      = "/stream-claim"
	pathVerifyClaim      = "/verify-claim"
	pathSuggestCitations = "/suggest-citations"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client // Bounded by the configured timeout
	streamHTTP *http.Client // No timeout; streams end via cancellation
	limiter    *worker.Limiter
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces both underlying HTTP clients, mainly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
			c.streamHTTP = hc
		}
	}
}

// NewClient creates a backend client from the API configuration
func NewClient(cfg model.APIConfig, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, model.Missing("api.base_url")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, &model.ValidationError{Field: "api.base_url", Reason: "must start with http:// or https://"}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	transport := util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy)
	c := &Client{
		baseURL:    joinURL(base, cfg.Version),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		streamHTTP: &http.Client{Transport: transport},
		limiter:    worker.NewLimiter(cfg.RateLimit, cfg.Burst),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the versioned base URL requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ValidateResult is the outcome of an API key check
type ValidateResult struct {
	OK     bool
	Status int
	Error  string
}

// ValidateAPIKey asks the backend whether key is usable. Network failures
// are reported in the result with Status 0.
func (c *Client) ValidateAPIKey(ctx context.Context, key string) ValidateResult {
	if strings.TrimSpace(key) == "" {
		return ValidateResult{Error: "Empty API key."}
	}

	resp, err := c.postJSON(ctx, c.httpClient, pathValidateAPIKey, map[string]string{"apiKey": key})
	if err != nil {
		return ValidateResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	if isSuccess(resp.StatusCode) {
		return ValidateResult{OK: true, Status: resp.StatusCode}
	}
	apiErr := c.readError(resp, "Invalid API key.")
	return ValidateResult{Status: resp.StatusCode, Error: apiErr.Message}
}

// UploadPaper uploads doc and returns the id of the job created for it
func (c *Client) UploadPaper(ctx context.Context, doc model.Document, apiKey string) (string, error) {
	if err := checkDocument(doc, "file"); err != nil {
		return "", err
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", model.Missing("API key")
	}

	body, contentType, err := multipartBody(map[string]string{"apiKey": apiKey}, doc)
	if err != nil {
		return "", err
	}

	resp, err := c.post(ctx, c.httpClient, pathUploadPaper, contentType, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", c.readError(resp, "Upload failed.")
	}

	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("upload response without jobId")
	}

	c.logger.Info("paper uploaded", "file", doc.Name, "bytes", len(doc.Data), "job_id", out.JobID)
	return out.JobID, nil
}

// OpenStream starts the NDJSON claim stream of a job. A non-success
// status or an empty body is returned as an *APIError.
func (c *Client) OpenStream(ctx context.Context, jobID, apiKey string) (io.ReadCloser, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, model.Missing("job id")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, model.Missing("API key")
	}

	resp, err := c.postJSON(ctx, c.streamHTTP, pathStreamClaim, map[string]string{"jobId": jobID, "apiKey": apiKey})
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, c.readError(resp, "Stream failed to start.")
	}
	if resp.Body == nil || resp.Body == http.NoBody || resp.ContentLength == 0 {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "No response body"}
	}

	c.logger.Debug("stream opened", "job_id", jobID, "status", resp.StatusCode)
	return resp.Body, nil
}

// VerifyClaim verifies one claim of a job against a source document
func (c *Client) VerifyClaim(ctx context.Context, jobID, claimID string, doc model.Document, apiKey string) (*model.VerificationResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, model.Missing("job id")
	}
	if strings.TrimSpace(claimID) == "" {
		return nil, model.Missing("claim id")
	}
	if err := checkDocument(doc, "verification document"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, model.Missing("API key")
	}

	fields := map[string]string{"jobId": jobID, "claimId": claimID, "apiKey": apiKey}
	body, contentType, err := multipartBody(fields, doc)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, c.httpClient, pathVerifyClaim, contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, c.readError(resp, "Verify failed.")
	}

	var out model.VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if out.ClaimID == "" {
		out.ClaimID = claimID
	}
	return &out, nil
}

// SuggestCitations returns candidate citations for a claim text. The
// backend may answer with a bare array or {"suggestions": [...]}.
func (c *Client) SuggestCitations(ctx context.Context, text string) ([]model.Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.Missing("claim text")
	}

	resp, err := c.postJSON(ctx, c.httpClient, pathSuggestCitations, map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, c.readError(resp, "Could not fetch suggestions.")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read suggest response: %w", err)
	}
	return decodeSuggestions(raw)
}

func decodeSuggestions(raw []byte) ([]model.Suggestion, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []model.Suggestion
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode suggestions: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Suggestions []model.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return wrapped.Suggestions, nil
}

func (c *Client) postJSON(ctx context.Context, hc *http.Client, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.post(ctx, hc, path, "application/json", bytes.NewReader(body))
}

func (c *Client) post(ctx context.Context, hc *http.Client, path, contentType string, body io.Reader) (*http.Response, error) {
	url := joinURL(c.baseURL, path)

	if err := c.limiter.Wait(ctx, url); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if path == pathStreamClaim {
		req.Header.Set("Accept", "application/x-ndjson")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func (c *Client) readError(resp *http.Response, fallback string) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := newAPIError(resp, body, fallback)
	c.logger.Debug("backend error", "url", resp.Request.URL.Path, "status", resp.StatusCode, "code", apiErr.Code)
	return apiErr
}

func multipartBody(fields map[string]string, doc model.Document) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, k := range []string{"jobId", "claimId"} {
		if v, ok := fields[k]; ok {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", k, err)
			}
		}
	}

	part, err := w.CreateFormFile("file", doc.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if v, ok := fields["apiKey"]; ok {
		if err := w.WriteField("apiKey", v); err != nil {
			return nil, "", fmt.Errorf("write field apiKey: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func checkDocument(doc model.Document, field string) error {
	if doc.Name == "" && doc.Data == nil {
		return model.Missing(field)
	}
	if len(doc.Data) == 0 {
		return &model.ValidationError{Field: field, Reason: "empty"}
	}
	return nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out += "/" + p
		}
	}
	return out
}
