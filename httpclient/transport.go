package httpclient

import (
	"fmt"
	"net/http"

	"github.com/AmmannChristian/go-authsession/authsession"
)

// AuthTransport is an http.RoundTripper that authenticates outgoing HTTP
// requests through an authsession.Authenticator.
//
// It wraps an existing transport (typically http.DefaultTransport). Expired
// tokens are refreshed before the request is sent; if authentication fails the
// request is not sent and the Authenticator's error is returned, wrapped.
type AuthTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Authenticator provides the access token.
	Authenticator *authsession.Authenticator
}

// RoundTrip implements http.RoundTripper interface.
// The request context bounds the wait for the Authenticator.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Authenticator == nil {
		return nil, fmt.Errorf("httpclient: Authenticator is nil")
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())

	if err := t.Authenticator.AuthenticateRequest(req.Context(), authsession.Header(reqClone.Header)); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("httpclient: failed to authenticate request: %w", err)
	}

	// Use base transport or default
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(reqClone)
}

// NewAuthTransport creates a new AuthTransport with the given authenticator.
// The base transport defaults to http.DefaultTransport if not specified.
func NewAuthTransport(a *authsession.Authenticator, base http.RoundTripper) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &AuthTransport{
		Base:          base,
		Authenticator: a,
	}
}
