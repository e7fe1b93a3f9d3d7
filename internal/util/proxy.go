package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc creates a proxy function for the backend transport.
// Explicit proxy URLs win; otherwise HTTP_PROXY/HTTPS_PROXY/NO_PROXY apply.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// NewTransport returns a transport cloned from the default one with the
// given proxy settings.
func NewTransport(httpProxy, httpsProxy string) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = NewProxyFunc(httpProxy, httpsProxy)
	return tr
}
