package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy.local:3128", "http://secure-proxy.local:3129")

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)
	u, err := fn(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u.Host != "secure-proxy.local:3129" {
		t.Errorf("expected https proxy, got %s", u.Host)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://api.example.com/x", nil)
	u, err = fn(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u.Host != "proxy.local:3128" {
		t.Errorf("expected http proxy, got %s", u.Host)
	}
}

func TestNewTransportUsesProxy(t *testing.T) {
	tr := NewTransport("http://proxy.local:3128", "")
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/x", nil)

	u, err := tr.Proxy(req)
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if u == nil || u.Host != "proxy.local:3128" {
		t.Errorf("expected fallback to http proxy, got %v", u)
	}
}
