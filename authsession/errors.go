package authsession

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/AmmannChristian/go-authsession/internal/workqueue"
)

var (
	// ErrNotAuthorized is returned when no token is stored. The user needs to log in first.
	ErrNotAuthorized = errors.New("authsession: not authorized, log in first")

	// ErrNoRefreshToken is returned when the stored token is expired and cannot be refreshed.
	ErrNoRefreshToken = errors.New("authsession: access token expired, no refresh token available")

	// ErrClosed is returned for requests submitted to, or still queued on, a closed Authenticator.
	ErrClosed = workqueue.ErrClosed
)

// noBody is the text carried by errors when the response had no body or the body was not valid UTF-8.
const noBody = "nil"

// TokenParseError reports a successful token endpoint response whose body could not be parsed.
type TokenParseError struct {
	Body string
	Err  error
}

func (e *TokenParseError) Error() string {
	return fmt.Sprintf("authsession: could not get token, expected access token but got: %s", e.Body)
}

func (e *TokenParseError) Unwrap() error {
	return e.Err
}

// ProtocolError reports an unsuccessful token endpoint response whose body is not an OAuth error object.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("authsession: could not authorize (status %d), expected error but got: %s", e.StatusCode, e.Body)
}

// TransportError reports a failure of the ServerConnector to deliver the token request.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("authsession: token request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StoreError reports a failure of the TokenStore.
type StoreError struct {
	Operation string // "store" or "retrieve"
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("authsession: %s token: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode is an OAuth 2.0 error code (RFC 6749, section 5.2).
type ErrorCode string

const (
	ErrorInvalidRequest       ErrorCode = "invalid_request"
	ErrorInvalidClient        ErrorCode = "invalid_client"
	ErrorInvalidGrant         ErrorCode = "invalid_grant"
	ErrorUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrorUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrorInvalidScope         ErrorCode = "invalid_scope"
)

// Valid reports whether c is one of the codes defined by RFC 6749.
func (c ErrorCode) Valid() bool {
	switch c {
	case ErrorInvalidRequest, ErrorInvalidClient, ErrorInvalidGrant,
		ErrorUnauthorizedClient, ErrorUnsupportedGrantType, ErrorInvalidScope:
		return true
	default:
		return false
	}
}

// OAuthError is an error response of the token endpoint (RFC 6749, section 5.2).
type OAuthError struct {
	Code        ErrorCode
	Description string
	URI         string
}

func (e *OAuthError) Error() string {
	msg := "authsession: oauth error: " + string(e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.URI != "" {
		msg += " (" + e.URI + ")"
	}
	return msg
}

// decodeOAuthError decodes body as an OAuth error object. Only "error" is
// required and must hold a known code; optional fields of the wrong type are ignored.
func decodeOAuthError(body []byte) (*OAuthError, bool) {
	var raw struct {
		Code        *ErrorCode      `json:"error"`
		Description json.RawMessage `json:"error_description"`
		URI         json.RawMessage `json:"error_uri"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false
	}
	if raw.Code == nil || !raw.Code.Valid() {
		return nil, false
	}

	oerr := &OAuthError{Code: *raw.Code}
	_ = json.Unmarshal(raw.Description, &oerr.Description)
	_ = json.Unmarshal(raw.URI, &oerr.URI)
	return oerr, true
}

// ClassifyErrorResponse turns an unsuccessful token endpoint response into an
// *OAuthError when the body is a standard error object, or a *ProtocolError
// carrying the raw body otherwise.
func ClassifyErrorResponse(statusCode int, body []byte) error {
	if body != nil {
		if oerr, ok := decodeOAuthError(body); ok {
			return oerr
		}
	}
	return &ProtocolError{StatusCode: statusCode, Body: bodyText(body)}
}

// bodyText renders a response body for error values.
func bodyText(body []byte) string {
	if body == nil || !utf8.Valid(body) {
		return noBody
	}
	return string(body)
}
