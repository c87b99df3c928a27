package authsession

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/AmmannChristian/go-authsession/internal/workqueue"
)

// Authenticator holds one access token, adds it to outgoing requests and
// refreshes it when it has expired.
//
// All operations that may change the stored token run on an internal FIFO
// queue, one at a time. When many goroutines authenticate requests against an
// expired token, only the first one refreshes it; the others are evaluated
// afterwards and see the refreshed (or cleared) token.
type Authenticator struct {
	tokenURL    string
	credentials *Credentials

	store                TokenStore
	parser               TokenParser
	connector            ServerConnector
	requestAuthenticator RequestAuthenticator

	logger Logger
	now    func() time.Time

	queue workqueue.Queue
}

// Option is a functional option for configuring Authenticator.
type Option func(*Authenticator)

// WithCredentials sets the client credentials used on token requests.
// Without credentials, token requests carry no client authentication.
func WithCredentials(creds Credentials) Option {
	return func(a *Authenticator) {
		a.credentials = &creds
	}
}

// WithStore sets the token store. Default: a new MemoryStore.
func WithStore(store TokenStore) Option {
	return func(a *Authenticator) {
		a.store = store
	}
}

// WithParser sets the token response parser. Default: DefaultParser.
func WithParser(parser TokenParser) Option {
	return func(a *Authenticator) {
		a.parser = parser
	}
}

// WithConnector sets the connector used to reach the token endpoint.
// Default: an HTTPConnector with DefaultTimeout.
func WithConnector(connector ServerConnector) Option {
	return func(a *Authenticator) {
		a.connector = connector
	}
}

// WithRequestAuthenticator sets how the token is added to requests.
// Default: BearerAuthenticator.
func WithRequestAuthenticator(ra RequestAuthenticator) Option {
	return func(a *Authenticator) {
		a.requestAuthenticator = ra
	}
}

// WithLogger sets a custom logger for token lifecycle events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(a *Authenticator) {
		a.logger = log.Default()
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// New creates an Authenticator that requests tokens from tokenURL.
//
// Parameters:
//   - tokenURL: OAuth2 token endpoint (e.g., "https://auth.example.com/oauth/token")
//   - opts: Optional configuration (WithCredentials, WithStore, WithParser, WithConnector, ...)
func New(tokenURL string, opts ...Option) (*Authenticator, error) {
	u, err := url.Parse(tokenURL)
	if err != nil {
		return nil, fmt.Errorf("authsession: invalid token URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("authsession: token URL must be absolute, got %q", tokenURL)
	}

	a := &Authenticator{
		tokenURL: tokenURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		a.store = NewMemoryStore()
	}
	if a.parser == nil {
		a.parser = DefaultParser{}
	}
	if a.connector == nil {
		a.connector = NewHTTPConnector(nil)
	}
	if a.requestAuthenticator == nil {
		a.requestAuthenticator = BearerAuthenticator{}
	}
	if a.now == nil {
		a.now = time.Now
	}

	return a, nil
}

// TokenURL returns the token endpoint.
func (a *Authenticator) TokenURL() string {
	return a.tokenURL
}

// HasAccessToken reports whether a token is stored, regardless of its expiry.
func (a *Authenticator) HasAccessToken(ctx context.Context) bool {
	token, err := a.store.RetrieveToken(ctx)
	return err == nil && token != nil
}

// HasValidAccessToken reports whether a token is stored and its expiry is not
// in the past. A token without expiry is not reported as valid here, although
// AuthenticateRequest uses it without refreshing.
func (a *Authenticator) HasValidAccessToken(ctx context.Context) bool {
	token, err := a.store.RetrieveToken(ctx)
	if err != nil || token == nil || !token.HasExpiry() {
		return false
	}
	return !token.ExpiresAt.Before(a.now())
}

// AccessToken returns the stored token, or nil if none is stored.
func (a *Authenticator) AccessToken(ctx context.Context) (*Token, error) {
	token, err := a.store.RetrieveToken(ctx)
	if err != nil {
		return nil, &StoreError{Operation: "retrieve", Err: err}
	}
	return token, nil
}

// AuthenticateRequestWith adds authentication for token to req without
// consulting the store or the network.
func (a *Authenticator) AuthenticateRequestWith(req HeaderSetter, token Token) {
	a.requestAuthenticator.AuthenticateRequest(req, token)
}

// AuthenticateRequest adds authentication to req using the stored token.
//
// An expired token with a refresh token is refreshed first, which performs
// network I/O; if the refresh fails, the stored token is cleared and the
// refresh error is returned. Errors:
//   - ErrNotAuthorized: no token is stored
//   - ErrNoRefreshToken: the token expired and has no refresh token
//   - *OAuthError, *ProtocolError, *TokenParseError, *TransportError: the refresh failed
//
// Calls are serialized with every other token operation of a. ctx only bounds
// the wait in the queue: once started, a refresh is not cancelled by ctx.
func (a *Authenticator) AuthenticateRequest(ctx context.Context, req HeaderSetter) error {
	return a.do(ctx, func() error {
		return a.authenticate(ctx, req)
	})
}

// AuthenticateRequestAsync queues the authentication of req and returns
// immediately. completion is called exactly once, on an unspecified goroutine.
func (a *Authenticator) AuthenticateRequestAsync(ctx context.Context, req HeaderSetter, completion func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	a.queue.Submit(func() {
		err := ctx.Err()
		if err == nil {
			err = a.authenticate(ctx, req)
		}
		go completion(err)
	}, func(err error) {
		go completion(err)
	})
}

// InvalidateAccessToken marks the stored token as expired so the next
// AuthenticateRequest refreshes it. The token and refresh token are kept.
// It does nothing if no token is stored.
func (a *Authenticator) InvalidateAccessToken(ctx context.Context) error {
	return a.do(ctx, func() error {
		token, err := a.AccessToken(ctx)
		if err != nil || token == nil {
			return err
		}
		invalidated := token.WithExpiresAt(time.Unix(0, 0))
		return a.storeToken(ctx, &invalidated)
	})
}

// ClearAccessToken removes the stored token. Afterwards the user needs to
// authenticate again, e.g. with RequestAccessToken.
func (a *Authenticator) ClearAccessToken(ctx context.Context) error {
	return a.do(ctx, func() error {
		return a.storeToken(ctx, nil)
	})
}

// AuthenticateWith stores a token obtained elsewhere, bypassing the token endpoint.
func (a *Authenticator) AuthenticateWith(ctx context.Context, token Token) error {
	return a.do(ctx, func() error {
		return a.storeToken(ctx, &token)
	})
}

// RequestAccessToken requests a token with the resource owner's password credentials
// and stores it.
func (a *Authenticator) RequestAccessToken(ctx context.Context, username, password string) (Token, error) {
	return a.RequestAccessTokenWith(ctx, PasswordGrant{Username: username, Password: password})
}

// RequestAccessTokenWithGrantType requests a token with an extension grant and stores it.
func (a *Authenticator) RequestAccessTokenWithGrantType(ctx context.Context, grantType string, params map[string]string) (Token, error) {
	return a.RequestAccessTokenWith(ctx, ExtensionGrant{GrantType: grantType, Params: params})
}

// RequestAccessTokenWith requests a token with grant and stores it. On failure
// the stored token is left unchanged.
func (a *Authenticator) RequestAccessTokenWith(ctx context.Context, grant Grant) (Token, error) {
	var token Token
	err := a.do(ctx, func() error {
		var err error
		token, err = a.exchange(ctx, grant)
		return err
	})
	return token, err
}

// Close stops accepting work. Queued calls return ErrClosed instead of
// blocking; a call that is already running completes normally.
func (a *Authenticator) Close() error {
	a.queue.Close()
	return nil
}

// do runs fn on the queue and waits for it. If ctx is done before fn starts,
// fn is withdrawn and ctx.Err() is returned.
func (a *Authenticator) do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan error, 1)
	ticket := a.queue.Submit(func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- fn()
	}, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ticket.Cancel() {
			return ctx.Err()
		}
		return <-done
	}
}

// authenticate decides, for the current stored token, how to authenticate req.
// It must only run on the queue.
func (a *Authenticator) authenticate(ctx context.Context, req HeaderSetter) error {
	token, err := a.AccessToken(ctx)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrNotAuthorized
	}

	if !token.ExpiredAt(a.now()) {
		a.AuthenticateRequestWith(req, *token)
		return nil
	}

	if !token.Refreshable() {
		return ErrNoRefreshToken
	}

	refreshed, err := a.refresh(ctx, token.RefreshToken)
	if err != nil {
		return err
	}
	a.AuthenticateRequestWith(req, refreshed)
	return nil
}

// refresh exchanges refreshToken for a new token. Any failure clears the
// stored token, including transport failures.
func (a *Authenticator) refresh(ctx context.Context, refreshToken string) (Token, error) {
	a.logf("authsession: access token expired, refreshing")

	token, err := a.exchange(context.WithoutCancel(ctx), RefreshGrant{RefreshToken: refreshToken})
	if err != nil {
		if clearErr := a.store.StoreToken(context.WithoutCancel(ctx), nil); clearErr != nil {
			a.logf("authsession: failed to clear token after refresh failure: %v", clearErr)
		}
		a.logf("authsession: refresh failed, stored token cleared: %v", err)
		return Token{}, err
	}

	return token, nil
}

// exchange sends grant to the token endpoint and stores the resulting token.
func (a *Authenticator) exchange(ctx context.Context, grant Grant) (Token, error) {
	req, err := NewTokenRequest(ctx, a.tokenURL, grant, a.credentials)
	if err != nil {
		return Token{}, err
	}

	resp, err := a.connector.Send(ctx, req)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) {
			return Token{}, terr
		}
		return Token{}, &TransportError{Err: err}
	}
	if resp == nil {
		return Token{}, &TransportError{Err: errors.New("no response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, ClassifyErrorResponse(resp.StatusCode, resp.Body)
	}

	if resp.Body == nil {
		return Token{}, &TokenParseError{Body: noBody, Err: errors.New("empty response body")}
	}
	token, err := a.parser.Parse(resp.Body)
	if err != nil {
		return Token{}, &TokenParseError{Body: bodyText(resp.Body), Err: err}
	}

	if err := a.storeToken(ctx, &token); err != nil {
		return Token{}, err
	}

	if token.HasExpiry() {
		a.logf("authsession: obtained new access token via %s grant (expires: %s)",
			grantName(grant), token.ExpiresAt.Format(time.RFC3339))
	} else {
		a.logf("authsession: obtained new access token via %s grant (no expiry)", grantName(grant))
	}
	return token, nil
}

func (a *Authenticator) storeToken(ctx context.Context, token *Token) error {
	if err := a.store.StoreToken(ctx, token); err != nil {
		return &StoreError{Operation: "store", Err: err}
	}
	return nil
}

func (a *Authenticator) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

func grantName(grant Grant) string {
	return grant.Parameters()["grant_type"]
}
