package api

import (
	"net/http"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		want       string
	}{
		{"detail string", 400, "", `{"detail":"Missing jobId"}`, "Missing jobId"},
		{"detail object message", 400, "", `{"detail":{"error":"bad_pdf","message":"Could not parse PDF"}}`, "Could not parse PDF"},
		{"detail object error only", 400, "", `{"detail":{"error":"bad_pdf"}}`, "bad_pdf"},
		{"file too large default", 413, "", `{"ok":false,"error":"file_too_large"}`, "File exceeds 10 MB."},
		{"file too large custom", 413, "", `{"ok":false,"error":"file_too_large","maxMb":5}`, "File exceeds 5 MB."},
		{"rate limited message", 429, "60", `{"error":"rate_limited","message":"Too many requests. Try again in 60s."}`, "Too many requests. Try again in 60s."},
		{"rate limited retry-after", 429, "30", `{"error":"rate_limited"}`, "Too many requests. Try again in 30s."},
		{"rate limited bare", 429, "", `{"error":"rate_limited"}`, "Too many requests."},
		{"top-level message", 500, "", `{"message":"boom"}`, "boom"},
		{"not json", 502, "", `<html>bad gateway</html>`, "502 Bad Gateway"},
		{"html title", 524, "", "<!DOCTYPE html>\n<html><head><title>\n  papertrail.example.com | 524:\n A timeout occurred</title></head><body><h1>524</h1></body></html>", "papertrail.example.com | 524: A timeout occurred"},
		{"plain text", 502, "", `upstream connect error`, "502 Bad Gateway"},
		{"empty object", 503, "", `{}`, "503 Service Unavailable"},
		{"empty body", 500, "", ``, "500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}
			_, got := errorMessage(resp, []byte(tt.body))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
