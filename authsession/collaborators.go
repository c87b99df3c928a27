package authsession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// TokenStore persists the single token managed by an Authenticator.
//
// A nil token means "absent": StoreToken(ctx, nil) removes the stored token and
// RetrieveToken returns nil when nothing is stored. Implementations must be safe
// for concurrent use: status queries read the store while a refresh may write it.
type TokenStore interface {
	StoreToken(ctx context.Context, token *Token) error
	RetrieveToken(ctx context.Context) (*Token, error)
}

// TokenParser turns a successful token endpoint response body into a Token.
type TokenParser interface {
	Parse(body []byte) (Token, error)
}

// Response is what a ServerConnector received from the token endpoint.
// A nil Body means the response carried no body.
type Response struct {
	StatusCode int
	Body       []byte
}

// ServerConnector sends token endpoint requests.
// A non-nil error means the request could not be delivered or the response not read;
// HTTP error statuses are reported through Response, not as errors.
// When the error is nil the Response must be non-nil; a nil Response is
// treated as a *TransportError.
type ServerConnector interface {
	Send(ctx context.Context, req *http.Request) (*Response, error)
}

// HeaderSetter is any request representation whose headers can be set.
type HeaderSetter interface {
	SetHeader(name, value string)
}

// RequestAuthenticator adds authentication for token to req.
type RequestAuthenticator interface {
	AuthenticateRequest(req HeaderSetter, token Token)
}

// Logger is an interface for optional logging in Authenticator.
type Logger interface {
	Printf(format string, args ...any)
}

// Header adapts an http.Header to HeaderSetter.
type Header http.Header

// SetHeader implements HeaderSetter.
func (h Header) SetHeader(name, value string) {
	http.Header(h).Set(name, value)
}

// BearerAuthenticator sets "Authorization: <tokenType> <accessToken>".
type BearerAuthenticator struct{}

// AuthenticateRequest implements RequestAuthenticator.
func (BearerAuthenticator) AuthenticateRequest(req HeaderSetter, token Token) {
	req.SetHeader("Authorization", token.TokenType+" "+token.AccessToken)
}

// DefaultParser decodes a JSON object using the token's own field names:
// accessToken, tokenType, expiresAt and refreshToken. Servers that answer with
// the RFC 6749 names (access_token, expires_in, ...) need a different parser,
// such as oauth2client.StandardParser.
type DefaultParser struct{}

// Parse implements TokenParser.
func (DefaultParser) Parse(body []byte) (Token, error) {
	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}
	return token, nil
}

// MemoryStore keeps the token in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// StoreToken implements TokenStore.
func (s *MemoryStore) StoreToken(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == nil {
		s.token = nil
		return nil
	}
	t := *token
	s.token = &t
	return nil
}

// RetrieveToken implements TokenStore.
func (s *MemoryStore) RetrieveToken(_ context.Context) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, nil
	}
	t := *s.token
	return &t, nil
}

// DefaultTimeout bounds token requests sent by the default HTTPConnector.
const DefaultTimeout = 30 * time.Second

// maxResponseBody caps how much of a token endpoint response is read.
const maxResponseBody = 1 << 20

// HTTPConnector sends token requests with an http.Client.
type HTTPConnector struct {
	// Client is used to send requests. If nil, a client with DefaultTimeout is used.
	Client *http.Client
}

// NewHTTPConnector returns a connector using client, or a client with DefaultTimeout if nil.
func NewHTTPConnector(client *http.Client) *HTTPConnector {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPConnector{Client: client}
}

// Send implements ServerConnector.
func (c *HTTPConnector) Send(ctx context.Context, req *http.Request) (*Response, error) {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) == 0 {
		body = nil
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
