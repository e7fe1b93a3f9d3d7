package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-success response from the backend. Error returns the
// human-readable message extracted from the body.
type APIError struct {
	StatusCode int
	Code       string // Machine code from the body, e.g. "rate_limited"
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Status codes the backend uses for retryable conditions
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// errorBody covers the error shapes the backend sends:
//
//	{"ok":false,"error":"file_too_large","maxMb":10}
//	{"ok":false,"error":"rate_limited","message":"..."}
//	{"detail":{...}}
//	{"detail":"..."}
type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	MaxMB   *float64 `json:"maxMb"`
}

// newAPIError builds the error for a non-success response
func newAPIError(resp *http.Response, body []byte, fallback string) *APIError {
	code, msg := errorMessage(resp, body)
	if msg == "" {
		msg = fallback
	}
	return &APIError{StatusCode: resp.StatusCode, Code: code, Message: msg}
}

// errorMessage extracts the best message from an error response body,
// falling back to the status line.
func errorMessage(resp *http.Response, body []byte) (code string, msg string) {
	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		if title := htmlTitle(body); title != "" {
			return "", title
		}
		return "", status
	}

	d := body
	if detail, ok := top["detail"]; ok && string(detail) != "null" {
		var s string
		if err := json.Unmarshal(detail, &s); err == nil {
			return "", s
		}
		d = detail
	}

	var eb errorBody
	if err := json.Unmarshal(d, &eb); err != nil {
		return "", status
	}

	switch eb.Error {
	case "file_too_large":
		mb := 10.0
		if eb.MaxMB != nil {
			mb = *eb.MaxMB
		}
		return eb.Error, fmt.Sprintf("File exceeds %g MB.", mb)

	case "rate_limited":
		if eb.Message != "" {
			return eb.Error, eb.Message
		}
		tail := ""
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			tail = fmt.Sprintf(" Try again in %ss.", ra)
		}
		return eb.Error, "Too many requests." + tail
	}

	if eb.Message != "" {
		return eb.Error, eb.Message
	}
	if eb.Error != "" {
		return eb.Error, eb.Error
	}
	return "", status
}
