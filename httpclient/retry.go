package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// Logger is an interface for optional logging of retries.
type Logger interface {
	Printf(format string, args ...any)
}

// RetryConnector wraps an authsession.ServerConnector and retries token
// requests that failed in transport or were answered with a 5xx status, using
// exponential backoff. 4xx answers, including OAuth error responses, are
// returned at once.
//
// The request body is re-created for every attempt from req.GetBody, or from a
// buffered copy when GetBody is nil.
type RetryConnector struct {
	// Next sends the individual attempts. If nil, an HTTPConnector with
	// authsession.DefaultTimeout is used.
	Next authsession.ServerConnector

	// MaxTries is the total number of attempts. Values below 1 mean 1.
	MaxTries uint

	// InitialInterval is the delay before the first retry. Default: 200ms.
	InitialInterval time.Duration

	// MaxInterval caps the delay between retries. Default: 5s.
	MaxInterval time.Duration

	// Logger receives one line per retry. Optional.
	Logger Logger
}

// NewRetryConnector returns a RetryConnector making at most maxTries attempts through next.
func NewRetryConnector(next authsession.ServerConnector, maxTries uint) *RetryConnector {
	return &RetryConnector{Next: next, MaxTries: maxTries}
}

// Send implements authsession.ServerConnector.
func (c *RetryConnector) Send(ctx context.Context, req *http.Request) (*authsession.Response, error) {
	next := c.Next
	if next == nil {
		next = authsession.NewHTTPConnector(nil)
	}

	getBody, err := bodyFactory(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: buffer request body: %w", err)
	}

	maxTries := c.MaxTries
	if maxTries < 1 {
		maxTries = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	b.MaxInterval = 5 * time.Second
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}

	attempt := 0
	operation := func() (*authsession.Response, error) {
		attempt++

		attemptReq := req.Clone(ctx)
		if getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			attemptReq.Body = body
		}

		resp, err := next.Send(ctx, attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, &serverError{statusCode: resp.StatusCode}
		}
		return resp, nil
	}

	notify := func(err error, delay time.Duration) {
		if c.Logger != nil {
			c.Logger.Printf("httpclient: token request attempt %d failed (%v), retrying in %s", attempt, err, delay)
		}
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(notify),
	)

	// A final 5xx is returned as a response so it can be classified.
	var serr *serverError
	if errors.As(err, &serr) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// serverError marks a 5xx answer as retryable.
type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server answered %d", e.statusCode)
}

// bodyFactory returns a function producing a fresh copy of req's body, or nil
// if req has no body.
func bodyFactory(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

var _ authsession.ServerConnector = (*RetryConnector)(nil)
