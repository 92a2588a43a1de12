// Package httputil builds HTTP clients tuned for repeated notification
// deliveries to a small set of endpoints: pooled connections and cached
// DNS lookups.
package httputil

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewClient returns a client with connection pooling and cached DNS.
func NewClient(timeout time.Duration) *http.Client {
	return newClient(timeout, false)
}

// NewInsecureClient skips TLS verification, for self-hosted endpoints
// with private certificates.
func NewInsecureClient(timeout time.Duration) *http.Client {
	return newClient(timeout, true)
}

func newClient(timeout time.Duration, insecure bool) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       90 * time.Second,
		DialContext:           DialContextWithCache,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
