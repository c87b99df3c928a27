package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AmmannChristian/go-authsession/authsession"
	"github.com/AmmannChristian/go-authsession/testutil"
)

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// scriptedEndpoint answers successive attempts from a script of status codes;
// a zero status simulates a transport failure.
func scriptedEndpoint(t *testing.T, statuses ...int) *testutil.MockTokenEndpoint {
	t.Helper()

	var mu sync.Mutex
	attempt := 0
	return testutil.NewMockTokenEndpoint(t, func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		status := statuses[len(statuses)-1]
		if attempt < len(statuses) {
			status = statuses[attempt]
		}
		attempt++
		mu.Unlock()

		if status == 0 {
			return nil, errors.New("connection reset by peer")
		}
		return testutil.JSONResponse(req, status, fmt.Sprintf(`{"status":%d}`, status)), nil
	})
}

func newFastRetryConnector(endpoint *testutil.MockTokenEndpoint, maxTries uint) *RetryConnector {
	c := NewRetryConnector(authsession.NewHTTPConnector(endpoint.Client()), maxTries)
	c.InitialInterval = time.Millisecond
	c.MaxInterval = 5 * time.Millisecond
	return c
}

func newTokenRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := authsession.NewTokenRequest(context.Background(), "https://mock-oauth.example.com/token",
		authsession.RefreshGrant{RefreshToken: "r1"}, nil)
	if err != nil {
		t.Fatalf("NewTokenRequest failed: %v", err)
	}
	return req
}

func TestRetryConnector_Send(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		maxTries     uint
		wantStatus   int
		wantErr      bool
		wantAttempts int
	}{
		{name: "success first try", statuses: []int{200}, maxTries: 3, wantStatus: 200, wantAttempts: 1},
		{name: "5xx then success", statuses: []int{503, 502, 200}, maxTries: 3, wantStatus: 200, wantAttempts: 3},
		{name: "transport error then success", statuses: []int{0, 200}, maxTries: 3, wantStatus: 200, wantAttempts: 2},
		{name: "4xx is not retried", statuses: []int{400, 200}, maxTries: 3, wantStatus: 400, wantAttempts: 1},
		{name: "final 5xx is returned as response", statuses: []int{500}, maxTries: 3, wantStatus: 500, wantAttempts: 3},
		{name: "final transport error", statuses: []int{0}, maxTries: 2, wantErr: true, wantAttempts: 2},
		{name: "zero tries means one", statuses: []int{503}, maxTries: 0, wantStatus: 503, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := scriptedEndpoint(t, tt.statuses...)
			logger := &recordingLogger{}
			connector := newFastRetryConnector(endpoint, tt.maxTries)
			connector.Logger = logger

			resp, err := connector.Send(context.Background(), newTokenRequest(t))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got status %d", resp.StatusCode)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if resp.StatusCode != tt.wantStatus {
					t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
				}
			}

			if endpoint.Count() != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", endpoint.Count(), tt.wantAttempts)
			}
			if logger.count() != tt.wantAttempts-1 {
				t.Errorf("logged %d retries, want %d", logger.count(), tt.wantAttempts-1)
			}
		})
	}
}

func TestRetryConnector_ResendsBody(t *testing.T) {
	endpoint := scriptedEndpoint(t, 503, 200)
	connector := newFastRetryConnector(endpoint, 3)

	req := newTokenRequest(t)
	req.GetBody = nil // force buffering

	if _, err := connector.Send(context.Background(), req); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	requests := endpoint.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(requests))
	}
	for i, r := range requests {
		if r.Form.Get("refresh_token") != "r1" || r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("attempt %d: body %q lost", i, r.Body)
		}
	}
}

func TestRetryConnector_ContextCancelled(t *testing.T) {
	endpoint := scriptedEndpoint(t, 503)
	connector := NewRetryConnector(authsession.NewHTTPConnector(endpoint.Client()), 10)
	connector.InitialInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := connector.Send(ctx, newTokenRequest(t))
		done <- err
	}()

	for endpoint.Count() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after cancellation")
	}
}

func TestRetryConnector_DefaultNext(t *testing.T) {
	connector := &RetryConnector{MaxTries: 1}
	req, _ := http.NewRequest(http.MethodPost, "http://127.0.0.1:1/token", strings.NewReader("a=b"))

	_, err := connector.Send(context.Background(), req)
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		t.Fatalf("expected a transport error from the default connector, got %v", err)
	}
}

func TestRetryConnector_WithAuthenticator(t *testing.T) {
	endpoint := scriptedEndpoint(t, 502, 502)
	auth, err := authsession.New(endpoint.URL,
		authsession.WithConnector(newFastRetryConnector(endpoint, 2)))
	if err != nil {
		t.Fatalf("authsession.New failed: %v", err)
	}
	t.Cleanup(func() { _ = auth.Close() })

	_, err = auth.RequestAccessToken(context.Background(), "u", "p")
	var perr *authsession.ProtocolError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected ProtocolError(502), got %v", err)
	}
	if endpoint.Count() != 2 {
		t.Errorf("expected 2 attempts, got %d", endpoint.Count())
	}
}

func TestBodyFactory_NoBody(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	getBody, err := bodyFactory(req)
	if err != nil || getBody != nil {
		t.Errorf("expected no body factory, got %v, %v", getBody != nil, err)
	}

	req.Body = io.NopCloser(strings.NewReader("payload"))
	getBody, err = bodyFactory(req)
	if err != nil {
		t.Fatalf("bodyFactory failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		body, _ := getBody()
		data, _ := io.ReadAll(body)
		if string(data) != "payload" {
			t.Errorf("copy %d = %q", i, data)
		}
	}
}
