package notifications

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newIPv4HTTPServer builds a test server pinned to the IPv4 loopback.
// httptest.NewServer may bind ::1 on some hosts, which the cached
// dialer then resolves differently from the advertised URL.
func newIPv4HTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("IPv4 loopback unavailable: %v", err)
	}
	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	return srv
}

func newIPv4TLSServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("IPv4 loopback unavailable: %v", err)
	}
	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.StartTLS()
	return srv
}
