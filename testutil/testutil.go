package testutil

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RecordedRequest is a token request captured by MockTokenEndpoint.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
	Form   url.Values
}

// MockTokenEndpoint simulates a token endpoint without real sockets.
// It records every request and serves responses through a custom RoundTripper.
// It is safe for concurrent use.
type MockTokenEndpoint struct {
	URL string

	handler  RoundTripFunc
	mu       sync.Mutex
	requests []RecordedRequest
}

// NewMockTokenEndpoint builds a mock token endpoint backed by an in-memory RoundTripper.
// If handler is nil, every request receives a default successful token response.
func NewMockTokenEndpoint(tb testing.TB, handler RoundTripFunc) *MockTokenEndpoint {
	tb.Helper()

	if handler == nil {
		handler = StaticJSONResponse(`{
			"accessToken": "mock-access-token",
			"tokenType": "Bearer",
			"refreshToken": "mock-refresh-token"
		}`)
	}

	return &MockTokenEndpoint{
		URL:     "https://mock-oauth.example.com/token",
		handler: handler,
	}
}

// RoundTrip records req and delegates to the handler.
func (m *MockTokenEndpoint) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	form, _ := url.ParseQuery(string(body))

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Header: req.Header.Clone(),
		Body:   string(body),
		Form:   form,
	})
	m.mu.Unlock()

	return m.handler(req)
}

// Client returns an http.Client whose requests are served by the endpoint.
func (m *MockTokenEndpoint) Client() *http.Client {
	return &http.Client{Transport: m}
}

// Requests returns a copy of the recorded requests.
func (m *MockTokenEndpoint) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Count returns the number of recorded requests.
func (m *MockTokenEndpoint) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Close is a no-op to mirror httptest.Server usage in tests.
func (m *MockTokenEndpoint) Close() {}

// JSONResponse builds a response with the given status and body.
func JSONResponse(req *http.Request, status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

// StaticJSONResponse returns a RoundTripper that always responds 200 with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return StatusJSONResponse(http.StatusOK, body)
}

// StatusJSONResponse returns a RoundTripper that always responds with the given status and body.
func StatusJSONResponse(status int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return JSONResponse(req, status, body), nil
	}
}
